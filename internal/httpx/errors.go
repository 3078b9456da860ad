package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-order-desk/internal/orders"
	"github.com/ariefcatur/go-order-desk/internal/users"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy to status codes. Anything
// unrecognised is an infrastructure failure and becomes a 500.
func writeError(w http.ResponseWriter, err error) {
	var stockErr *orders.StockError
	if errors.As(err, &stockErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     stockErr.Error(),
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
		return
	}

	switch {
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, orders.ErrLineItemNotFound),
		errors.Is(err, orders.ErrCustomerNotFound),
		errors.Is(err, users.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrInvalidInput),
		errors.Is(err, orders.ErrProductUnavailable),
		errors.Is(err, users.ErrInvalidInput):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrConcurrencyConflict),
		errors.Is(err, users.ErrConcurrencyConflict):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "the record was modified by another user, please reload and try again",
		})
	case errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrConflict),
		errors.Is(err, users.ErrConflict),
		errors.Is(err, users.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, users.ErrBadCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
