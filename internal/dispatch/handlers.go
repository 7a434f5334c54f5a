package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pilotd/internal/erp"
	"pilotd/internal/errs"
	"pilotd/internal/models"
)

// stringEntity pulls a trimmed string out of the entity map.
func stringEntity(entities map[string]any, key string) string {
	if entities == nil {
		return ""
	}
	v, ok := entities[key]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	default:
		return ""
	}
}

// floatEntity pulls a number out of the entity map. Model output often
// carries numbers as strings, so both forms are accepted.
func floatEntity(entities map[string]any, key string) (float64, bool) {
	if entities == nil {
		return 0, false
	}
	switch v := entities[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (d *Dispatcher) createCustomer(ctx context.Context, req Request) Result {
	if !d.authz.HasDocPermission(ctx, "Customer", models.OpCreate, req.UserID) {
		return failure("You don't have permission to create customers")
	}

	name := stringEntity(req.Entities, "customer_name")
	if name == "" {
		return failure("Customer name is required")
	}

	customer, err := d.store.CreateCustomer(ctx, name)
	if err != nil {
		return failure("%s", errs.SafeMessage(err, "creating the customer"))
	}
	return success(fmt.Sprintf("Customer '%s' created successfully", customer.CustomerName), customer)
}

func (d *Dispatcher) getCustomerInfo(ctx context.Context, req Request) Result {
	if !d.authz.HasDocPermission(ctx, "Customer", models.OpRead, req.UserID) {
		return failure("You don't have permission to view customers")
	}

	name := stringEntity(req.Entities, "customer_name")
	if name == "" {
		customers, err := d.store.ListCustomers(ctx, 20)
		if err != nil {
			return failure("%s", errs.SafeMessage(err, "fetching customers"))
		}
		return success(fmt.Sprintf("Found %d customers", len(customers)), customers)
	}

	customer, err := d.store.GetCustomer(ctx, name)
	if errors.Is(err, erp.ErrNotFound) {
		return failure("Customer '%s' was not found", name)
	}
	if err != nil {
		return failure("%s", errs.SafeMessage(err, "fetching the customer"))
	}
	return success(fmt.Sprintf("Customer '%s'", customer.CustomerName), customer)
}

func (d *Dispatcher) createItem(ctx context.Context, req Request) Result {
	if !d.authz.HasDocPermission(ctx, "Item", models.OpCreate, req.UserID) {
		return failure("You don't have permission to create items")
	}

	name := stringEntity(req.Entities, "item_name")
	if name == "" {
		return failure("Item name is required")
	}

	item, err := d.store.CreateItem(ctx, name, stringEntity(req.Entities, "item_group"))
	if err != nil {
		return failure("%s", errs.SafeMessage(err, "creating the item"))
	}
	return success(fmt.Sprintf("Item '%s' created successfully", item.ItemName), item)
}

func (d *Dispatcher) createWarehouse(ctx context.Context, req Request) Result {
	if !d.authz.HasDocPermission(ctx, "Warehouse", models.OpCreate, req.UserID) {
		return failure("You don't have permission to create warehouses")
	}

	name := stringEntity(req.Entities, "warehouse_name")
	if name == "" {
		return failure("Warehouse name is required")
	}

	company := stringEntity(req.Entities, "company")
	if company == "" {
		if company = req.Preference.DefaultCompany; company == "" {
			var err error
			if company, err = d.store.DefaultCompany(ctx); err != nil {
				return failure("%s", errs.SafeMessage(err, "resolving the company"))
			}
		}
	}
	if company == "" {
		return failure("No company configured; set a default company first")
	}

	wh, err := d.store.CreateWarehouse(ctx, name, company)
	if err != nil {
		return failure("%s", errs.SafeMessage(err, "creating the warehouse"))
	}
	return success(fmt.Sprintf("Warehouse '%s' created successfully", wh.WarehouseName), wh)
}

func (d *Dispatcher) createSalesOrder(ctx context.Context, req Request) Result {
	if !d.authz.HasDocPermission(ctx, "Sales Order", models.OpCreate, req.UserID) {
		return failure("You don't have permission to create sales orders")
	}

	customer := stringEntity(req.Entities, "customer_name")
	if customer == "" {
		return failure("Customer name is required for a sales order")
	}
	if _, err := d.store.GetCustomer(ctx, customer); errors.Is(err, erp.ErrNotFound) {
		return failure("Customer '%s' was not found", customer)
	} else if err != nil {
		return failure("%s", errs.SafeMessage(err, "verifying the customer"))
	}

	company := stringEntity(req.Entities, "company")
	if company == "" {
		if company = req.Preference.DefaultCompany; company == "" {
			var err error
			if company, err = d.store.DefaultCompany(ctx); err != nil {
				return failure("%s", errs.SafeMessage(err, "resolving the company"))
			}
		}
	}

	var lines []erp.OrderLine
	if item := stringEntity(req.Entities, "item_name"); item != "" {
		qty, ok := floatEntity(req.Entities, "quantity")
		if !ok {
			qty = 1
		}
		rate, _ := floatEntity(req.Entities, "rate")
		lines = append(lines, erp.OrderLine{ItemCode: item, Qty: qty, Rate: rate})
	}
	if len(lines) == 0 {
		return failure("At least one item is required for a sales order")
	}

	so, err := d.store.CreateSalesOrder(ctx, customer, company, lines)
	if err != nil {
		return failure("%s", errs.SafeMessage(err, "creating the sales order"))
	}
	return success(fmt.Sprintf("Sales order %s created for '%s'", so.Name, customer), so)
}

func (d *Dispatcher) getStockLevels(ctx context.Context, req Request) Result {
	if !d.authz.HasDocPermission(ctx, "Stock Ledger Entry", models.OpRead, req.UserID) {
		return failure("You don't have permission to view stock levels")
	}

	bins, err := d.store.StockLevels(ctx,
		stringEntity(req.Entities, "item_name"),
		stringEntity(req.Entities, "warehouse_name"))
	if err != nil {
		return failure("%s", errs.SafeMessage(err, "fetching stock levels"))
	}
	return success(fmt.Sprintf("Found stock in %d bins", len(bins)), bins)
}

func (d *Dispatcher) getSalesReport(ctx context.Context, req Request) Result {
	if !d.authz.HasDocPermission(ctx, "Sales Invoice", models.OpRead, req.UserID) {
		return failure("You don't have permission to view sales reports")
	}

	rows, err := d.store.SalesReport(ctx)
	if err != nil {
		return failure("%s", errs.SafeMessage(err, "building the sales report"))
	}
	return success(fmt.Sprintf("Sales report for the last 30 days (%d customers)", len(rows)), rows)
}

func (d *Dispatcher) getOutstandingInvoices(ctx context.Context, req Request) Result {
	if !d.authz.HasDocPermission(ctx, "Sales Invoice", models.OpRead, req.UserID) {
		return failure("You don't have permission to view invoices")
	}

	invoices, err := d.store.OutstandingInvoices(ctx)
	if err != nil {
		return failure("%s", errs.SafeMessage(err, "fetching outstanding invoices"))
	}
	return success(fmt.Sprintf("Found %d outstanding invoices", len(invoices)), invoices)
}

func (d *Dispatcher) updateItemPrice(ctx context.Context, req Request) Result {
	if !d.authz.HasDocPermission(ctx, "Item Price", models.OpWrite, req.UserID) {
		return failure("You don't have permission to update prices")
	}

	item := stringEntity(req.Entities, "item_name")
	if item == "" {
		return failure("Item name is required")
	}
	rate, ok := floatEntity(req.Entities, "rate")
	if !ok {
		rate, ok = floatEntity(req.Entities, "price")
	}
	if !ok || rate < 0 {
		return failure("A valid price is required")
	}

	price, err := d.store.UpsertItemPrice(ctx, item, rate)
	if err != nil {
		return failure("%s", errs.SafeMessage(err, "updating the item price"))
	}
	return success(fmt.Sprintf("Price for '%s' set to %.2f", item, price.PriceListRate), price)
}

// generalQuery carries no action of its own; the pipeline answers it directly
// through the model. Reaching the handler still counts as a successful
// dispatch so the conversation is logged consistently.
func (d *Dispatcher) generalQuery(ctx context.Context, req Request) Result {
	return success("", nil)
}
