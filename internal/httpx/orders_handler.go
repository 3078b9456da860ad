package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-order-desk/internal/orders"
	"github.com/ariefcatur/go-order-desk/internal/redisx"
	"github.com/ariefcatur/go-order-desk/internal/users"
)

type OrdersHandler struct {
	Orders OrderStore
	Redis  *redis.Client // optional order-view cache
}

type createOrderReq struct {
	CustomerID string `json:"customer_id,omitempty"`
}

type statusReq struct {
	Status string `json:"status"`
}

// create opens an empty order. Customers always order for themselves;
// staff may pass any customer_id.
func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	var req createOrderReq
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	customerID := req.CustomerID
	if p.Role == users.RoleCustomer || customerID == "" {
		customerID = p.UserID
	}

	o, err := h.Orders.Create(r.Context(), customerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// list shows every order to staff and only the caller's own to customers.
func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	filter := r.URL.Query().Get("customer_id")
	if p.Role == users.RoleCustomer {
		filter = p.UserID
	}
	os, err := h.Orders.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, os)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	orderID := chi.URLParam(r, "id")

	// coba cache dulu; staff only, the ownership check needs the row anyway
	key := fmt.Sprintf(redisx.KeyOrderView, orderID)
	if h.Redis != nil && p.Role != users.RoleCustomer {
		if s, err := h.Redis.Get(r.Context(), key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	o, err := h.Orders.Get(r.Context(), orderID, true)
	if err != nil {
		writeError(w, err)
		return
	}
	if p.Role == users.RoleCustomer && o.CustomerID != p.UserID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
		return
	}

	if h.Redis != nil {
		if b, err := json.Marshal(o); err == nil {
			_ = h.Redis.Set(r.Context(), key, b, redisx.TTLOrderView).Err()
		}
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	next, ok := orders.ParseStatus(req.Status)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "unknown status"})
		return
	}

	orderID := chi.URLParam(r, "id")
	o, err := h.Orders.UpdateStatus(r.Context(), orderID, next)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(r, orderID)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) remove(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if err := h.Orders.Delete(r.Context(), orderID); err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(r, orderID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) invalidate(r *http.Request, orderID string) {
	if h.Redis != nil {
		_ = h.Redis.Del(r.Context(), fmt.Sprintf(redisx.KeyOrderView, orderID)).Err()
	}
}
