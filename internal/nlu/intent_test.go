package nlu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFallbackIntent(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantIntent string
		wantEntity map[string]any
	}{
		{
			name:       "create customer with name",
			text:       "create a new customer ABC Corp",
			wantIntent: "create_customer",
			wantEntity: map[string]any{"customer_name": "ABC Corp"},
		},
		{
			name:       "add item",
			text:       "add item Widget",
			wantIntent: "create_item",
			wantEntity: map[string]any{"item_name": "Widget"},
		},
		{
			name:       "sales order for customer",
			text:       "new sales order for ABC Corp",
			wantIntent: "create_sales_order",
			wantEntity: map[string]any{"customer_name": "ABC Corp"},
		},
		{
			name:       "warehouse with called prefix",
			text:       "create warehouse called Main Store",
			wantIntent: "create_warehouse",
			wantEntity: map[string]any{"warehouse_name": "Main Store"},
		},
		{
			name:       "create without a known document",
			text:       "create something else",
			wantIntent: "create_document",
		},
		{
			name:       "stock query",
			text:       "show stock levels",
			wantIntent: "get_stock_levels",
		},
		{
			name:       "customer lookup",
			text:       "get customer ABC Corp",
			wantIntent: "get_customer_info",
			wantEntity: map[string]any{"customer_name": "ABC Corp"},
		},
		{
			name:       "sales report",
			text:       "show me the sales report",
			wantIntent: "get_sales_report",
		},
		{
			name:       "generic read",
			text:       "list everything",
			wantIntent: "get_information",
		},
		{
			name:       "everything else",
			text:       "what is the meaning of life",
			wantIntent: "general_query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FallbackIntent(tt.text)
			require.Equal(t, tt.wantIntent, got.Intent)
			require.Equal(t, 0.5, got.Confidence)
			require.True(t, got.Fallback)
			for k, v := range tt.wantEntity {
				require.Equal(t, v, got.Entities[k])
			}
		})
	}
}

func TestParseIntentJSON(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantOK     bool
		wantIntent string
	}{
		{
			name:       "plain object",
			raw:        `{"intent": "create_customer", "entities": {"customer_name": "ABC"}, "confidence": 0.9}`,
			wantOK:     true,
			wantIntent: "create_customer",
		},
		{
			name:       "object wrapped in prose",
			raw:        "Sure! Here is the result:\n{\"intent\": \"get_stock_levels\", \"entities\": {}, \"confidence\": 0.8}\nLet me know if you need more.",
			wantOK:     true,
			wantIntent: "get_stock_levels",
		},
		{
			name:   "no json at all",
			raw:    "I could not understand that request.",
			wantOK: false,
		},
		{
			name:   "empty object",
			raw:    "{}",
			wantOK: false,
		},
		{
			name:   "malformed json",
			raw:    `{"intent": "create_customer",`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseIntentJSON(tt.raw)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			require.Equal(t, tt.wantIntent, got.Intent)
			require.NotNil(t, got.Entities)
		})
	}
}

func newTestClient(t *testing.T, baseURL string, enabled bool) *Client {
	t.Helper()
	c, err := NewClient(Settings{
		BaseURL: baseURL,
		Model:   "test-model",
		Enabled: enabled,
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestExtractIntentFromModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/generate":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"response": `{"intent": "create_customer", "entities": {"customer_name": "ABC Corp"}, "confidence": 0.92}`,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, true)
	got := c.ExtractIntent(context.Background(), "create a new customer ABC Corp")

	require.Equal(t, "create_customer", got.Intent)
	require.Equal(t, "ABC Corp", got.Entities["customer_name"])
	require.False(t, got.Fallback)
	require.NotEmpty(t, got.Prompt)
	require.NotEmpty(t, got.RawResponse)
}

func TestExtractIntentDegradesWhenServiceDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	srv.Close()

	c := newTestClient(t, srv.URL, true)
	got := c.ExtractIntent(context.Background(), "create a new customer ABC Corp")

	require.True(t, got.Fallback)
	require.Equal(t, "create_customer", got.Intent)
	require.Equal(t, "ABC Corp", got.Entities["customer_name"])
	require.Equal(t, 0.5, got.Confidence)
}

func TestExtractIntentDegradesOnGarbageReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/generate":
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "not json at all"})
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, true)
	got := c.ExtractIntent(context.Background(), "show stock levels")

	require.True(t, got.Fallback)
	require.Equal(t, "get_stock_levels", got.Intent)
}

func TestExtractIntentDisabledClient(t *testing.T) {
	c := newTestClient(t, "http://localhost:0", false)
	got := c.ExtractIntent(context.Background(), "show me the sales report")

	require.True(t, got.Fallback)
	require.Equal(t, "get_sales_report", got.Intent)
}
