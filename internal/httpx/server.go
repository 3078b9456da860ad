package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-order-desk/internal/orders"
	"github.com/ariefcatur/go-order-desk/internal/users"
)

// The handlers talk to the stores through these interfaces so the
// package tests can drive them with fakes.

type ProductStore interface {
	Get(ctx context.Context, id string) (orders.Product, error)
	List(ctx context.Context, sellableOnly bool) ([]orders.Product, error)
	Create(ctx context.Context, p orders.Product) (orders.Product, error)
	Update(ctx context.Context, p orders.Product) (orders.Product, error)
	Delete(ctx context.Context, id string) error
}

type OrderStore interface {
	Create(ctx context.Context, customerID string) (orders.Order, error)
	Get(ctx context.Context, id string, withItems bool) (orders.Order, error)
	GetItem(ctx context.Context, itemID string) (orders.LineItem, error)
	List(ctx context.Context, customerID string) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, id string, next orders.Status) (orders.Order, error)
	Delete(ctx context.Context, id string) error
}

// LineItemService is the reconciliation core (orders.Reconciler).
type LineItemService interface {
	AddItem(ctx context.Context, orderID, productID string, qty int) (orders.LineItem, error)
	UpdateItem(ctx context.Context, itemID string, newQty int) (orders.LineItem, error)
	RemoveItem(ctx context.Context, itemID string) (orders.LineItem, error)
}

type UserStore interface {
	Create(ctx context.Context, name, email, password string, role users.Role) (users.User, error)
	Get(ctx context.Context, id string) (users.User, error)
	List(ctx context.Context) ([]users.User, error)
	Update(ctx context.Context, u users.User, newPassword string) (users.User, error)
	Delete(ctx context.Context, id string) error
	Authenticate(ctx context.Context, email, password string) (users.User, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type API struct {
	Sessions SessionStore
	Auth     *AuthHandler
	Users    *UsersHandler
	Products *ProductsHandler
	Orders   *OrdersHandler
	Items    *ItemsHandler
}

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func (a *API) Routes() *chi.Mux {
	r := NewRouter()

	r.Post("/login", a.Auth.login)
	r.Post("/logout", a.Auth.logout)

	r.Group(func(pr chi.Router) {
		pr.Use(a.requireSession)

		pr.Route("/users", func(ur chi.Router) {
			ur.Use(a.require(users.PermUserManage))
			ur.Get("/", a.Users.list)
			ur.Post("/", a.Users.create)
			ur.Get("/{id}", a.Users.get)
			ur.Put("/{id}", a.Users.update)
			ur.Delete("/{id}", a.Users.remove)
		})

		pr.Route("/products", func(cr chi.Router) {
			cr.With(a.require(users.PermProductRead)).Get("/", a.Products.list)
			cr.With(a.require(users.PermProductRead)).Get("/{id}", a.Products.get)
			cr.With(a.require(users.PermProductWrite)).Post("/", a.Products.create)
			cr.With(a.require(users.PermProductWrite)).Put("/{id}", a.Products.update)
			cr.With(a.require(users.PermProductDelete)).Delete("/{id}", a.Products.remove)
		})

		pr.Route("/orders", func(or chi.Router) {
			or.With(a.require(users.PermOrderRead)).Get("/", a.Orders.list)
			or.With(a.require(users.PermOrderRead)).Get("/{id}", a.Orders.get)
			or.With(a.require(users.PermOrderCreate)).Post("/", a.Orders.create)
			or.With(a.require(users.PermOrderStatus)).Patch("/{id}/status", a.Orders.updateStatus)
			or.With(a.require(users.PermOrderDelete)).Delete("/{id}", a.Orders.remove)
			or.With(a.require(users.PermItemWrite)).Post("/{id}/items", a.Items.add)
		})

		pr.Route("/items", func(ir chi.Router) {
			ir.Use(a.require(users.PermItemWrite))
			ir.Patch("/{id}", a.Items.update)
			ir.Delete("/{id}", a.Items.remove)
		})
	})

	return r
}
