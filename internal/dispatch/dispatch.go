// Package dispatch maps resolved intents onto registered action handlers.
// Every handler re-checks resource-level permission before mutating state,
// and no failure escapes the dispatcher: panics and errors all collapse into
// a failed Result.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"pilotd/internal/authz"
	"pilotd/internal/erp"
	"pilotd/internal/errs"
	"pilotd/internal/modelmgr"
	"pilotd/internal/models"
)

// Request carries the caller identity, extracted entities, and preferences
// into a handler.
type Request struct {
	UserID     string
	Entities   map[string]any
	Preference models.UserPreference
}

// Result is the structured outcome of one action execution.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	ActionName string `json:"action_name,omitempty"`
}

func failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

func success(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}

// Handler executes one intent's action.
type Handler interface {
	Handle(ctx context.Context, req Request) Result
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) Result

// Handle calls fn.
func (fn HandlerFunc) Handle(ctx context.Context, req Request) Result {
	return fn(ctx, req)
}

// Dispatcher holds the static intent registry and the shared dependencies
// handlers draw on.
type Dispatcher struct {
	authz    *authz.Service
	store    *erp.Store
	orm      *gorm.DB
	mgr      *modelmgr.Manager
	registry map[string]Handler
	log      zerolog.Logger
}

// New builds a Dispatcher with one registered handler per supported intent.
func New(authzSvc *authz.Service, store *erp.Store, orm *gorm.DB, mgr *modelmgr.Manager, log zerolog.Logger) (*Dispatcher, error) {
	if authzSvc == nil {
		return nil, errors.New("authorization service is required")
	}
	if store == nil {
		return nil, errors.New("document store is required")
	}
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if mgr == nil {
		return nil, errors.New("model manager is required")
	}

	d := &Dispatcher{
		authz: authzSvc,
		store: store,
		orm:   orm,
		mgr:   mgr,
		log:   log,
	}
	d.registry = map[string]Handler{
		"create_sales_order":       HandlerFunc(d.createSalesOrder),
		"get_stock_levels":         HandlerFunc(d.getStockLevels),
		"create_item":              HandlerFunc(d.createItem),
		"get_customer_info":        HandlerFunc(d.getCustomerInfo),
		"create_customer":          HandlerFunc(d.createCustomer),
		"get_sales_report":         HandlerFunc(d.getSalesReport),
		"create_warehouse":         HandlerFunc(d.createWarehouse),
		"update_item_price":        HandlerFunc(d.updateItemPrice),
		"get_outstanding_invoices": HandlerFunc(d.getOutstandingInvoices),
		"manage_models":            HandlerFunc(d.manageModels),
		"run_admin_command":        HandlerFunc(d.runAdminCommand),
		"create_user":              HandlerFunc(d.createUser),
		"general_query":            HandlerFunc(d.generalQuery),
	}
	return d, nil
}

// Intents returns the registered intent names.
func (d *Dispatcher) Intents() []string {
	out := make([]string, 0, len(d.registry))
	for intent := range d.registry {
		out = append(out, intent)
	}
	return out
}

// Dispatch resolves the action definition for intent, re-checks intent-level
// authorization, and runs the registered handler. The action name from the
// definition is attached to the result even on failure.
func (d *Dispatcher) Dispatch(ctx context.Context, intent string, req Request) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("intent", intent).Msg("handler panicked")
			safe := errs.SafeMessage(fmt.Errorf("%v", r), "executing action")
			result = Result{Success: false, Error: safe, ActionName: result.ActionName}
		}
	}()

	action, err := d.authz.FindAction(ctx, intent)
	if err != nil {
		return failure("Action lookup failed: %v", err)
	}
	if action == nil {
		return failure("No action defined for intent: %s", intent)
	}

	// Second layer of the intent-level check; deliberate defense-in-depth.
	roles, err := d.authz.Roles(ctx, req.UserID)
	if err != nil {
		return Result{Success: false, Error: "Unable to resolve user roles", ActionName: action.ActionName}
	}
	if ok, reason := authz.CanExecute(action, roles); !ok {
		return Result{Success: false, Error: reason, ActionName: action.ActionName}
	}

	handler, ok := d.registry[intent]
	if !ok {
		return Result{
			Success:    false,
			Error:      fmt.Sprintf("Action function not implemented for intent: %s", intent),
			ActionName: action.ActionName,
		}
	}

	result = handler.Handle(ctx, req)
	result.ActionName = action.ActionName
	return result
}
