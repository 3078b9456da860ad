package httpx

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-order-desk/internal/orders"
	"github.com/ariefcatur/go-order-desk/internal/users"
)

type fakeSessions struct {
	m map[string]Principal
}

func newFakeSessions() *fakeSessions { return &fakeSessions{m: map[string]Principal{}} }

func (s *fakeSessions) Create(ctx context.Context, u users.User) (string, error) {
	sid := "sid-" + u.ID
	s.m[sid] = Principal{UserID: u.ID, Name: u.Name, Role: u.Role}
	return sid, nil
}

func (s *fakeSessions) Get(ctx context.Context, id string) (Principal, error) {
	p, ok := s.m[id]
	if !ok {
		return Principal{}, ErrNoSession
	}
	return p, nil
}

func (s *fakeSessions) Destroy(ctx context.Context, id string) error {
	delete(s.m, id)
	return nil
}

type fakeUser struct {
	u        users.User
	password string
}

type fakeUsers struct {
	byEmail map[string]fakeUser
}

func newFakeUsers(us ...fakeUser) *fakeUsers {
	f := &fakeUsers{byEmail: map[string]fakeUser{}}
	for _, u := range us {
		f.byEmail[u.u.Email] = u
	}
	return f
}

func (f *fakeUsers) Create(ctx context.Context, name, email, password string, role users.Role) (users.User, error) {
	if _, taken := f.byEmail[email]; taken {
		return users.User{}, users.ErrEmailTaken
	}
	u := users.User{ID: "u-" + email, Name: name, Email: email, Role: role, Version: 1}
	f.byEmail[email] = fakeUser{u: u, password: password}
	return u, nil
}

func (f *fakeUsers) Get(ctx context.Context, id string) (users.User, error) {
	for _, fu := range f.byEmail {
		if fu.u.ID == id {
			return fu.u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}

func (f *fakeUsers) List(ctx context.Context) ([]users.User, error) {
	var out []users.User
	for _, fu := range f.byEmail {
		out = append(out, fu.u)
	}
	return out, nil
}

func (f *fakeUsers) Update(ctx context.Context, u users.User, newPassword string) (users.User, error) {
	return u, nil
}

func (f *fakeUsers) Delete(ctx context.Context, id string) error { return nil }

func (f *fakeUsers) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	fu, ok := f.byEmail[email]
	if !ok || fu.password != password {
		return users.User{}, users.ErrBadCredentials
	}
	return fu.u, nil
}

type fakeProducts struct {
	m map[string]orders.Product
}

func newFakeProducts() *fakeProducts { return &fakeProducts{m: map[string]orders.Product{}} }

func (f *fakeProducts) Get(ctx context.Context, id string) (orders.Product, error) {
	p, ok := f.m[id]
	if !ok {
		return orders.Product{}, orders.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeProducts) List(ctx context.Context, sellableOnly bool) ([]orders.Product, error) {
	var out []orders.Product
	for _, p := range f.m {
		if sellableOnly && !p.Sellable() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProducts) Create(ctx context.Context, p orders.Product) (orders.Product, error) {
	p.ID = fmt.Sprintf("p-%d", len(f.m)+1)
	p.Version = 1
	f.m[p.ID] = p
	return p, nil
}

func (f *fakeProducts) Update(ctx context.Context, p orders.Product) (orders.Product, error) {
	cur, ok := f.m[p.ID]
	if !ok {
		return orders.Product{}, orders.ErrProductNotFound
	}
	if cur.Version != p.Version {
		return orders.Product{}, orders.ErrConcurrencyConflict
	}
	p.Stock = cur.Stock
	p.Version++
	f.m[p.ID] = p
	return p, nil
}

func (f *fakeProducts) Delete(ctx context.Context, id string) error {
	if _, ok := f.m[id]; !ok {
		return orders.ErrProductNotFound
	}
	delete(f.m, id)
	return nil
}

type fakeOrders struct {
	m     map[string]orders.Order
	items map[string]orders.LineItem
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{m: map[string]orders.Order{}, items: map[string]orders.LineItem{}}
}

func (f *fakeOrders) Create(ctx context.Context, customerID string) (orders.Order, error) {
	o := orders.Order{
		ID: fmt.Sprintf("o-%d", len(f.m)+1), CustomerID: customerID,
		Status: orders.StatusPending, Version: 1,
	}
	f.m[o.ID] = o
	return o, nil
}

func (f *fakeOrders) Get(ctx context.Context, id string, withItems bool) (orders.Order, error) {
	o, ok := f.m[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	if withItems {
		for _, it := range f.items {
			if it.OrderID == id {
				o.Items = append(o.Items, it)
			}
		}
	}
	return o, nil
}

func (f *fakeOrders) GetItem(ctx context.Context, itemID string) (orders.LineItem, error) {
	it, ok := f.items[itemID]
	if !ok {
		return orders.LineItem{}, orders.ErrLineItemNotFound
	}
	return it, nil
}

func (f *fakeOrders) List(ctx context.Context, customerID string) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range f.m {
		if customerID != "" && o.CustomerID != customerID {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatus(ctx context.Context, id string, next orders.Status) (orders.Order, error) {
	o, ok := f.m[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	if !orders.CanTransition(o.Status, next) {
		return orders.Order{}, orders.ErrInvalidInput
	}
	o.Status = next
	o.Version++
	f.m[id] = o
	return o, nil
}

func (f *fakeOrders) Delete(ctx context.Context, id string) error {
	if _, ok := f.m[id]; !ok {
		return orders.ErrOrderNotFound
	}
	for _, it := range f.items {
		if it.OrderID == id {
			return orders.ErrConflict
		}
	}
	delete(f.m, id)
	return nil
}

// fakeItems scripts the reconciliation core per test.
type fakeItems struct {
	addFn    func(orderID, productID string, qty int) (orders.LineItem, error)
	updateFn func(itemID string, qty int) (orders.LineItem, error)
	removeFn func(itemID string) (orders.LineItem, error)
}

func (f *fakeItems) AddItem(ctx context.Context, orderID, productID string, qty int) (orders.LineItem, error) {
	return f.addFn(orderID, productID, qty)
}

func (f *fakeItems) UpdateItem(ctx context.Context, itemID string, qty int) (orders.LineItem, error) {
	return f.updateFn(itemID, qty)
}

func (f *fakeItems) RemoveItem(ctx context.Context, itemID string) (orders.LineItem, error) {
	return f.removeFn(itemID)
}

type published struct {
	key     []byte
	value   []byte
	headers []kafkago.Header
}

type fakePublisher struct {
	msgs []published
}

func (p *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.msgs = append(p.msgs, published{key: key, value: value, headers: headers})
}
