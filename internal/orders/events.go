package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventLineItemAdded   = "LineItemAdded"
	EventLineItemUpdated = "LineItemUpdated"
	EventLineItemRemoved = "LineItemRemoved"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "order-desk-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// LineItemEventPayload describes one reconciliation step after commit.
// Quantity and Subtotal are the item's values after the operation
// (for a remove: the values it had when deleted).
type LineItemEventPayload struct {
	OrderID    string          `json:"order_id"`
	LineItemID string          `json:"line_item_id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	OrderTotal decimal.Decimal `json:"order_total"`
}
