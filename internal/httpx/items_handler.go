package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-order-desk/internal/kafka"
	"github.com/ariefcatur/go-order-desk/internal/orders"
	"github.com/ariefcatur/go-order-desk/internal/redisx"
	"github.com/ariefcatur/go-order-desk/internal/users"
)

// ItemsHandler is a thin shell around the reconciliation core: validate
// the shape, check ownership, call the core, then publish the event and
// drop the cached order view. The core itself never touches Kafka or
// Redis.
type ItemsHandler struct {
	Items    LineItemService
	Orders   OrderStore
	Producer Publisher
	Redis    *redis.Client
	Service  string
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateItemReq struct {
	Quantity int `json:"quantity"`
}

func (h *ItemsHandler) add(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing product_id"})
		return
	}
	if !h.ownsOrder(w, r, orderID) {
		return
	}

	item, err := h.Items.AddItem(r.Context(), orderID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	h.afterMutation(r, orders.EventLineItemAdded, item)
	writeJSON(w, http.StatusCreated, item)
}

func (h *ItemsHandler) update(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	var req updateItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if !h.ownsItem(w, r, itemID) {
		return
	}

	item, err := h.Items.UpdateItem(r.Context(), itemID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	h.afterMutation(r, orders.EventLineItemUpdated, item)
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemsHandler) remove(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	if !h.ownsItem(w, r, itemID) {
		return
	}

	item, err := h.Items.RemoveItem(r.Context(), itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.afterMutation(r, orders.EventLineItemRemoved, item)
	w.WriteHeader(http.StatusNoContent)
}

// ownsOrder lets staff through and pins customers to their own orders.
// Writes the response itself when the check fails.
func (h *ItemsHandler) ownsOrder(w http.ResponseWriter, r *http.Request, orderID string) bool {
	p, _ := PrincipalFrom(r.Context())
	if p.Role != users.RoleCustomer {
		return true
	}
	o, err := h.Orders.Get(r.Context(), orderID, false)
	if err != nil {
		writeError(w, err)
		return false
	}
	if o.CustomerID != p.UserID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
		return false
	}
	return true
}

func (h *ItemsHandler) ownsItem(w http.ResponseWriter, r *http.Request, itemID string) bool {
	p, _ := PrincipalFrom(r.Context())
	if p.Role != users.RoleCustomer {
		return true
	}
	it, err := h.Orders.GetItem(r.Context(), itemID)
	if err != nil {
		writeError(w, err)
		return false
	}
	return h.ownsOrder(w, r, it.OrderID)
}

func (h *ItemsHandler) afterMutation(r *http.Request, eventType string, item orders.LineItem) {
	if h.Redis != nil {
		_ = h.Redis.Del(r.Context(), fmt.Sprintf(redisx.KeyOrderView, item.OrderID)).Err()
	}
	if h.Producer == nil {
		return
	}

	payload := orders.LineItemEventPayload{
		OrderID:    item.OrderID,
		LineItemID: item.ID,
		ProductID:  item.ProductID,
		Quantity:   item.Quantity,
		Subtotal:   item.Subtotal,
	}
	if o, err := h.Orders.Get(r.Context(), item.OrderID, false); err == nil {
		payload.OrderTotal = o.Total
	}

	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: item.OrderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	h.Producer.Publish(orders.PartitionKey(item.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
