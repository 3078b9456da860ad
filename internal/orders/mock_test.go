package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-order-desk/internal/postgres"
)

// In-memory stand-in for the pool. Transactions work on a deep copy of
// the tables and swap it in on commit, so the atomicity guarantees the
// repos rely on are observable in tests: a failed operation must leave
// the committed state untouched.

type mockProduct struct {
	sku, name, description, category string
	price                            decimal.Decimal
	stock                            int
	available                        bool
	version                          int64
	createdAt, updatedAt             time.Time
}

type mockOrder struct {
	customerID           string
	status               Status
	total                decimal.Decimal
	placedAt, updatedAt  time.Time
	version              int64
}

type mockItem struct {
	orderID, productID string
	qty                int
	subtotal           decimal.Decimal
	version            int64
}

type tables struct {
	products map[string]*mockProduct
	orders   map[string]*mockOrder
	items    map[string]*mockItem
	users    map[string]bool
}

func newTables() *tables {
	return &tables{
		products: map[string]*mockProduct{},
		orders:   map[string]*mockOrder{},
		items:    map[string]*mockItem{},
		users:    map[string]bool{},
	}
}

func (t *tables) clone() *tables {
	cp := newTables()
	for k, v := range t.products {
		p := *v
		cp.products[k] = &p
	}
	for k, v := range t.orders {
		o := *v
		cp.orders[k] = &o
	}
	for k, v := range t.items {
		it := *v
		cp.items[k] = &it
	}
	for k, v := range t.users {
		cp.users[k] = v
	}
	return cp
}

type mockDB struct {
	state *tables

	beginErr  error
	execErr   error
	commitErr error

	// beforeExec lets a test mutate the tx state between the reads and a
	// write, simulating a concurrent writer racing the version check.
	beforeExec func(tx *mockTx, sql string)

	lastTx *mockTx
}

func newMockDB() *mockDB { return &mockDB{state: newTables()} }

func (db *mockDB) addProduct(id string, price string, stock int, available bool) {
	db.state.products[id] = &mockProduct{
		sku: "sku-" + id, name: "product " + id,
		price: decimal.RequireFromString(price), stock: stock, available: available,
		version: 1, createdAt: time.Now(), updatedAt: time.Now(),
	}
}

func (db *mockDB) addOrder(id, customerID string) {
	db.state.orders[id] = &mockOrder{
		customerID: customerID, status: StatusPending, total: decimal.Zero,
		placedAt: time.Now(), updatedAt: time.Now(), version: 1,
	}
}

func (db *mockDB) addItem(id, orderID, productID string, qty int, subtotal string) {
	db.state.items[id] = &mockItem{
		orderID: orderID, productID: productID, qty: qty,
		subtotal: decimal.RequireFromString(subtotal), version: 1,
	}
}

func (db *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return queryRow(db.state, sql, args)
}

func (db *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return query(db.state, sql, args)
}

func (db *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if db.execErr != nil {
		return pgconn.CommandTag{}, db.execErr
	}
	return exec(db.state, sql, args)
}

func (db *mockDB) BeginTx(ctx context.Context, opts pgx.TxOptions) (postgres.Tx, error) {
	if db.beginErr != nil {
		return nil, db.beginErr
	}
	tx := &mockTx{db: db, state: db.state.clone()}
	db.lastTx = tx
	return tx, nil
}

type mockTx struct {
	db    *mockDB
	state *tables

	committed  bool
	rolledBack bool
}

func (tx *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return queryRow(tx.state, sql, args)
}

func (tx *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return query(tx.state, sql, args)
}

func (tx *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx.db.execErr != nil {
		return pgconn.CommandTag{}, tx.db.execErr
	}
	if tx.db.beforeExec != nil {
		tx.db.beforeExec(tx, sql)
	}
	return exec(tx.state, sql, args)
}

func (tx *mockTx) Commit(ctx context.Context) error {
	if tx.db.commitErr != nil {
		return tx.db.commitErr
	}
	tx.db.state = tx.state
	tx.committed = true
	return nil
}

func (tx *mockTx) Rollback(ctx context.Context) error {
	tx.rolledBack = true
	return nil
}

// --- SQL dispatch -----------------------------------------------------

func queryRow(s *tables, sql string, args []any) pgx.Row {
	switch {
	case strings.Contains(sql, "SELECT version FROM orders"):
		o, ok := s.orders[args[0].(string)]
		if !ok {
			return mockRow{err: pgx.ErrNoRows}
		}
		return mockRow{values: []any{o.version}}

	case strings.Contains(sql, "SELECT price, stock, available, version FROM products"):
		p, ok := s.products[args[0].(string)]
		if !ok {
			return mockRow{err: pgx.ErrNoRows}
		}
		return mockRow{values: []any{p.price, p.stock, p.available, p.version}}

	case strings.Contains(sql, "SELECT order_id, product_id, quantity, subtotal, version FROM line_items"):
		it, ok := s.items[args[0].(string)]
		if !ok {
			return mockRow{err: pgx.ErrNoRows}
		}
		return mockRow{values: []any{it.orderID, it.productID, it.qty, it.subtotal, it.version}}

	case strings.Contains(sql, "SELECT id, order_id, product_id, quantity, subtotal, version"):
		id := args[0].(string)
		it, ok := s.items[id]
		if !ok {
			return mockRow{err: pgx.ErrNoRows}
		}
		return mockRow{values: []any{id, it.orderID, it.productID, it.qty, it.subtotal, it.version}}

	case strings.Contains(sql, "COUNT(*) FROM line_items WHERE id="):
		if _, ok := s.items[args[0].(string)]; ok {
			return mockRow{values: []any{1}}
		}
		return mockRow{values: []any{0}}

	case strings.Contains(sql, "COUNT(*) FROM line_items WHERE order_id="):
		n := 0
		for _, it := range s.items {
			if it.orderID == args[0].(string) {
				n++
			}
		}
		return mockRow{values: []any{n}}

	case strings.Contains(sql, "COUNT(*) FROM line_items WHERE product_id="):
		n := 0
		for _, it := range s.items {
			if it.productID == args[0].(string) {
				n++
			}
		}
		return mockRow{values: []any{n}}

	case strings.Contains(sql, "SELECT EXISTS(SELECT 1 FROM users"):
		return mockRow{values: []any{s.users[args[0].(string)]}}

	case strings.Contains(sql, "COUNT(*) FROM products WHERE id="):
		if _, ok := s.products[args[0].(string)]; ok {
			return mockRow{values: []any{1}}
		}
		return mockRow{values: []any{0}}

	case strings.Contains(sql, "FROM orders WHERE id="):
		o, ok := s.orders[args[0].(string)]
		if !ok {
			return mockRow{err: pgx.ErrNoRows}
		}
		return mockRow{values: []any{args[0].(string), o.customerID, o.status, o.total, o.placedAt, o.version, o.updatedAt}}

	case strings.Contains(sql, "FROM products WHERE id="):
		id := args[0].(string)
		p, ok := s.products[id]
		if !ok {
			return mockRow{err: pgx.ErrNoRows}
		}
		return mockRow{values: []any{id, p.sku, p.name, p.description, p.category, p.price, p.stock, p.available, p.version, p.createdAt, p.updatedAt}}

	case strings.Contains(sql, "INSERT INTO products"):
		now := time.Now()
		s.products[args[0].(string)] = &mockProduct{
			sku: args[1].(string), name: args[2].(string),
			description: args[3].(string), category: args[4].(string),
			price: args[5].(decimal.Decimal), stock: args[6].(int), available: args[7].(bool),
			version: 1, createdAt: now, updatedAt: now,
		}
		return mockRow{values: []any{now, now}}

	case strings.Contains(sql, "INSERT INTO orders"):
		now := time.Now()
		s.orders[args[0].(string)] = &mockOrder{
			customerID: args[1].(string), status: args[2].(Status),
			total: decimal.Zero, placedAt: now, updatedAt: now, version: 1,
		}
		return mockRow{values: []any{decimal.Zero, now, now}}

	default:
		return mockRow{err: fmt.Errorf("mock: unhandled query %q", sql)}
	}
}

func query(s *tables, sql string, args []any) (pgx.Rows, error) {
	if strings.Contains(sql, "FROM line_items WHERE order_id=") {
		var rows [][]any
		for id, it := range s.items {
			if it.orderID == args[0].(string) {
				rows = append(rows, []any{id, it.orderID, it.productID, it.qty, it.subtotal, it.version})
			}
		}
		return &mockRows{rows: rows}, nil
	}
	return nil, fmt.Errorf("mock: unhandled query %q", sql)
}

func tag(verb string, n int) pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("%s %d", verb, n))
}

func exec(s *tables, sql string, args []any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO line_items"):
		s.items[args[0].(string)] = &mockItem{
			orderID: args[1].(string), productID: args[2].(string),
			qty: args[3].(int), subtotal: args[4].(decimal.Decimal), version: 1,
		}
		return tag("INSERT", 1), nil

	case strings.Contains(sql, "UPDATE products SET stock = stock - $2"):
		p, ok := s.products[args[0].(string)]
		if !ok || p.version != args[2].(int64) {
			return tag("UPDATE", 0), nil
		}
		p.stock -= args[1].(int)
		if p.stock < 0 {
			return pgconn.CommandTag{}, errors.New("mock: stock check constraint violated")
		}
		p.version++
		return tag("UPDATE", 1), nil

	case strings.Contains(sql, "UPDATE orders SET total = total + $2"):
		o, ok := s.orders[args[0].(string)]
		if !ok || o.version != args[2].(int64) {
			return tag("UPDATE", 0), nil
		}
		o.total = o.total.Add(args[1].(decimal.Decimal))
		o.version++
		return tag("UPDATE", 1), nil

	case strings.Contains(sql, "UPDATE line_items SET quantity=$2"):
		it, ok := s.items[args[0].(string)]
		if !ok || it.version != args[3].(int64) {
			return tag("UPDATE", 0), nil
		}
		it.qty = args[1].(int)
		it.subtotal = args[2].(decimal.Decimal)
		it.version++
		return tag("UPDATE", 1), nil

	case strings.Contains(sql, "DELETE FROM line_items WHERE id=$1 AND version=$2"):
		it, ok := s.items[args[0].(string)]
		if !ok || it.version != args[1].(int64) {
			return tag("DELETE", 0), nil
		}
		delete(s.items, args[0].(string))
		return tag("DELETE", 1), nil

	case strings.Contains(sql, "UPDATE products"):
		p, ok := s.products[args[0].(string)]
		if !ok || p.version != args[7].(int64) {
			return tag("UPDATE", 0), nil
		}
		p.sku = args[1].(string)
		p.name = args[2].(string)
		p.description = args[3].(string)
		p.category = args[4].(string)
		p.price = args[5].(decimal.Decimal)
		p.available = args[6].(bool)
		p.version++
		return tag("UPDATE", 1), nil

	case strings.Contains(sql, "UPDATE orders SET status=$2"):
		o, ok := s.orders[args[0].(string)]
		if !ok || o.version != args[2].(int64) {
			return tag("UPDATE", 0), nil
		}
		o.status = args[1].(Status)
		o.version++
		return tag("UPDATE", 1), nil

	case strings.Contains(sql, "DELETE FROM orders WHERE id=$1"):
		if _, ok := s.orders[args[0].(string)]; !ok {
			return tag("DELETE", 0), nil
		}
		delete(s.orders, args[0].(string))
		return tag("DELETE", 1), nil

	case strings.Contains(sql, "DELETE FROM products WHERE id=$1"):
		if _, ok := s.products[args[0].(string)]; !ok {
			return tag("DELETE", 0), nil
		}
		delete(s.products, args[0].(string))
		return tag("DELETE", 1), nil

	default:
		return pgconn.CommandTag{}, fmt.Errorf("mock: unhandled exec %q", sql)
	}
}

// --- row / rows -------------------------------------------------------

type mockRow struct {
	values []any
	err    error
}

func (r mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("mock: scan %d dest, %d values", len(dest), len(r.values))
	}
	for i, v := range r.values {
		if err := assign(dest[i], v); err != nil {
			return err
		}
	}
	return nil
}

func assign(dest, v any) error {
	switch d := dest.(type) {
	case *string:
		*d = v.(string)
	case *int:
		*d = v.(int)
	case *int64:
		*d = v.(int64)
	case *bool:
		*d = v.(bool)
	case *time.Time:
		*d = v.(time.Time)
	case *decimal.Decimal:
		*d = v.(decimal.Decimal)
	case *Status:
		*d = v.(Status)
	default:
		return fmt.Errorf("mock: unsupported scan dest %T", dest)
	}
	return nil
}

type mockRows struct {
	rows [][]any
	idx  int
}

func (r *mockRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	return mockRow{values: r.rows[r.idx-1]}.Scan(dest...)
}

func (r *mockRows) Close()                                       {}
func (r *mockRows) Err() error                                   { return nil }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
