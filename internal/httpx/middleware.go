package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-order-desk/internal/users"
)

type ctxKey int

const principalKey ctxKey = iota

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// requireSession resolves the session cookie and puts the principal on
// the context. No cookie or a dead session means 401.
func (a *API) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		p, err := a.Sessions.Get(r.Context(), c.Value)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

// require gates a route on the permission table.
func (a *API) require(perm users.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
				return
			}
			if !users.Allowed(p.Role, perm) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
