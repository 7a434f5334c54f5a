package dispatch

import (
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"pilotd/internal/authz"
	"pilotd/internal/erp"
	"pilotd/internal/modelmgr"
	"pilotd/internal/nlu"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	orm := &gorm.DB{}
	authzSvc, err := authz.New(orm)
	if err != nil {
		t.Fatalf("authz.New() error = %v", err)
	}
	store, err := erp.NewStore(orm)
	if err != nil {
		t.Fatalf("erp.NewStore() error = %v", err)
	}
	client, err := nlu.NewClient(nlu.Settings{BaseURL: "http://localhost:11434"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("nlu.NewClient() error = %v", err)
	}
	mgr, err := modelmgr.New(orm, client, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("modelmgr.New() error = %v", err)
	}
	d, err := New(authzSvc, store, orm, mgr, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

func TestIntentsCoverRegistry(t *testing.T) {
	d := newTestDispatcher(t)

	want := []string{
		"create_sales_order",
		"get_stock_levels",
		"create_item",
		"get_customer_info",
		"create_customer",
		"get_sales_report",
		"create_warehouse",
		"update_item_price",
		"get_outstanding_invoices",
		"manage_models",
		"run_admin_command",
		"create_user",
		"general_query",
	}

	got := d.Intents()
	if len(got) != len(want) {
		t.Fatalf("Intents() returned %d intents, want %d", len(got), len(want))
	}
	registered := make(map[string]bool, len(got))
	for _, intent := range got {
		registered[intent] = true
	}
	for _, intent := range want {
		if !registered[intent] {
			t.Fatalf("intent %q is not registered", intent)
		}
	}
}

func TestStringEntity(t *testing.T) {
	tests := []struct {
		name     string
		entities map[string]any
		key      string
		want     string
	}{
		{name: "nil map", entities: nil, key: "customer_name", want: ""},
		{name: "missing key", entities: map[string]any{}, key: "customer_name", want: ""},
		{name: "string value", entities: map[string]any{"customer_name": "ABC Corp"}, key: "customer_name", want: "ABC Corp"},
		{name: "trims whitespace", entities: map[string]any{"customer_name": "  ABC  "}, key: "customer_name", want: "ABC"},
		{name: "non-string value", entities: map[string]any{"quantity": 5.0}, key: "quantity", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stringEntity(tt.entities, tt.key); got != tt.want {
				t.Fatalf("stringEntity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFloatEntity(t *testing.T) {
	tests := []struct {
		name     string
		entities map[string]any
		key      string
		want     float64
		wantOK   bool
	}{
		{name: "nil map", entities: nil, key: "quantity"},
		{name: "json number", entities: map[string]any{"quantity": 3.0}, key: "quantity", want: 3, wantOK: true},
		{name: "int", entities: map[string]any{"quantity": 7}, key: "quantity", want: 7, wantOK: true},
		{name: "numeric string", entities: map[string]any{"rate": "12.50"}, key: "rate", want: 12.5, wantOK: true},
		{name: "padded numeric string", entities: map[string]any{"rate": " 9 "}, key: "rate", want: 9, wantOK: true},
		{name: "non-numeric string", entities: map[string]any{"rate": "a lot"}, key: "rate"},
		{name: "wrong type", entities: map[string]any{"rate": true}, key: "rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := floatEntity(tt.entities, tt.key)
			if ok != tt.wantOK {
				t.Fatalf("floatEntity() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Fatalf("floatEntity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResultHelpers(t *testing.T) {
	f := failure("no action defined for intent: %s", "dance")
	if f.Success {
		t.Fatal("failure() produced a successful result")
	}
	if f.Error != "no action defined for intent: dance" {
		t.Fatalf("failure() error = %q", f.Error)
	}

	s := success("done", map[string]any{"n": 1})
	if !s.Success || s.Message != "done" || s.Error != "" {
		t.Fatalf("success() = %+v", s)
	}
}
