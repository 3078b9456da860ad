package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-order-desk/internal/postgres"
)

type OrderRepo struct{ DB postgres.DB }

const orderCols = `id, customer_id, status, total, placed_at, version, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &o.Total, &o.PlacedAt, &o.Version, &o.UpdatedAt)
	return o, err
}

// Create opens a new empty order for the customer: status PENDING, total 0.
func (r *OrderRepo) Create(ctx context.Context, customerID string) (Order, error) {
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, customerID).Scan(&exists); err != nil {
		return Order{}, err
	}
	if !exists {
		return Order{}, ErrCustomerNotFound
	}

	o := Order{ID: uuid.NewString(), CustomerID: customerID, Status: StatusPending, Version: 1}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders(id, customer_id, status)
		VALUES ($1,$2,$3)
		RETURNING total, placed_at, updated_at`,
		o.ID, o.CustomerID, o.Status,
	).Scan(&o.Total, &o.PlacedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *OrderRepo) Get(ctx context.Context, id string, withItems bool) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if !withItems {
		return o, nil
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, quantity, subtotal, version
		FROM line_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Subtotal, &it.Version); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// GetItem is a read accessor for a single line item; mutations go
// through the Reconciler only.
func (r *OrderRepo) GetItem(ctx context.Context, itemID string) (LineItem, error) {
	var it LineItem
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, product_id, quantity, subtotal, version
		FROM line_items WHERE id=$1`, itemID).
		Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Subtotal, &it.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return LineItem{}, ErrLineItemNotFound
	}
	return it, err
}

// List returns orders newest first. Empty customerID means all orders.
func (r *OrderRepo) List(ctx context.Context, customerID string) ([]Order, error) {
	q := `SELECT ` + orderCols + ` FROM orders`
	args := []any{}
	if customerID != "" {
		q += ` WHERE customer_id=$1`
		args = append(args, customerID)
	}
	q += ` ORDER BY placed_at DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus moves the order along the transition map in status.go.
// The version check makes a racing status change surface as a conflict
// instead of silently winning.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, next Status) (Order, error) {
	o, err := r.Get(ctx, id, false)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(o.Status, next) {
		return Order{}, fmt.Errorf("%w: cannot move %s from %s to %s", ErrInvalidInput, id, o.Status, next)
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, version=version+1, updated_at=now()
		WHERE id=$1 AND version=$3`, id, next, o.Version)
	if err != nil {
		return Order{}, err
	}
	if ct.RowsAffected() == 0 {
		return Order{}, ErrConcurrencyConflict
	}
	return r.Get(ctx, id, false)
}

// Delete removes an empty order. An order that still has line items is a
// hard conflict: the items must be removed first so stock and total get
// reconciled on the way out.
func (r *OrderRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var items int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM line_items WHERE order_id=$1`, id).Scan(&items); err != nil {
		return err
	}
	if items > 0 {
		return fmt.Errorf("%w: order has %d line item(s)", ErrConflict, items)
	}
	ct, err := tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return tx.Commit(ctx)
}
