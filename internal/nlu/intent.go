package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Intent is the structured result of resolving a user request.
type Intent struct {
	Intent     string         `json:"intent"`
	Entities   map[string]any `json:"entities"`
	Confidence float64        `json:"confidence"`
	// Fallback marks that the deterministic classifier produced this intent
	// because the model call failed or returned garbage.
	Fallback bool `json:"-"`
	// Prompt and RawResponse capture the model exchange for the audit trail.
	Prompt      string `json:"-"`
	RawResponse string `json:"-"`
}

const extractionPromptTemplate = `
You are an AI assistant that extracts intent and entities from user queries for a business data platform.

Analyze the following user input and extract:
1. Intent: The main action the user wants to perform
2. Entities: Specific data mentioned (names, dates, amounts, etc.)

User Input: "%s"

Respond ONLY with a valid JSON object in this exact format:
{
  "intent": "action_name",
  "entities": {
    "entity_type": "entity_value"
  },
  "confidence": 0.95
}

Common intents include:
- create_sales_order
- get_stock_levels
- create_item
- get_customer_info
- create_customer
- get_sales_report
- create_warehouse
- update_item_price
- get_outstanding_invoices

Example entities:
- customer_name, item_name, quantity, price, date, warehouse_name, etc.
`

// ExtractIntent asks the model for a JSON intent object embedded in its
// reply. On any failure (service down, non-200, no parsable JSON) it
// returns the deterministic keyword fallback instead of an error.
func (c *Client) ExtractIntent(ctx context.Context, text string) Intent {
	prompt := fmt.Sprintf(extractionPromptTemplate, text)

	raw, err := c.Generate(ctx, prompt, "")
	if err != nil {
		c.log.Warn().Err(err).Msg("intent extraction degraded to keyword classifier")
		intent := FallbackIntent(text)
		intent.Prompt = prompt
		return intent
	}

	intent, ok := parseIntentJSON(raw)
	if !ok {
		c.log.Warn().Msg("model reply carried no parsable intent object")
		intent = FallbackIntent(text)
	}
	intent.Prompt = prompt
	intent.RawResponse = raw
	return intent
}

// parseIntentJSON recovers the first brace-delimited JSON object from a reply
// that may contain surrounding prose.
func parseIntentJSON(raw string) (Intent, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Intent{}, false
	}

	var intent Intent
	if err := json.Unmarshal([]byte(raw[start:end+1]), &intent); err != nil {
		return Intent{}, false
	}
	if intent.Intent == "" {
		return Intent{}, false
	}
	if intent.Entities == nil {
		intent.Entities = map[string]any{}
	}
	return intent, true
}

// FallbackIntent is the deterministic keyword classifier used when the model
// is unavailable. The table is a documented degraded mode, not an
// approximation: confidence is fixed at 0.5 and the keyword matches below
// are authoritative.
func FallbackIntent(text string) Intent {
	lower := strings.ToLower(text)

	contains := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	var intent string
	entities := map[string]any{}
	switch {
	case contains("create", "add", "new"):
		switch {
		case strings.Contains(lower, "sales order"):
			intent = "create_sales_order"
			putEntity(entities, "customer_name", nameAfter(text, lower, "sales order"))
		case strings.Contains(lower, "customer"):
			intent = "create_customer"
			putEntity(entities, "customer_name", nameAfter(text, lower, "customer"))
		case strings.Contains(lower, "item"):
			intent = "create_item"
			putEntity(entities, "item_name", nameAfter(text, lower, "item"))
		case strings.Contains(lower, "warehouse"):
			intent = "create_warehouse"
			putEntity(entities, "warehouse_name", nameAfter(text, lower, "warehouse"))
		default:
			intent = "create_document"
		}
	case contains("get", "show", "list", "find"):
		switch {
		case strings.Contains(lower, "stock"):
			intent = "get_stock_levels"
		case strings.Contains(lower, "customer"):
			intent = "get_customer_info"
			putEntity(entities, "customer_name", nameAfter(text, lower, "customer"))
		case strings.Contains(lower, "report"):
			intent = "get_sales_report"
		default:
			intent = "get_information"
		}
	default:
		intent = "general_query"
	}

	return Intent{
		Intent:     intent,
		Entities:   entities,
		Confidence: 0.5,
		Fallback:   true,
	}
}

// nameAfter recovers a best-effort name entity from the words following the
// matched keyword, e.g. "create a new customer ABC Corp" yields "ABC Corp".
func nameAfter(text, lower, keyword string) string {
	idx := strings.Index(lower, keyword)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(text[idx+len(keyword):])
	rest = strings.Trim(rest, ".,!?")
	for _, prefix := range []string{"named ", "called ", "for "} {
		if strings.HasPrefix(strings.ToLower(rest), prefix) {
			rest = strings.TrimSpace(rest[len(prefix):])
			break
		}
	}
	return rest
}

func putEntity(entities map[string]any, key, value string) {
	if value != "" {
		entities[key] = value
	}
}
