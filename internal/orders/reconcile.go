package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-order-desk/internal/postgres"
)

// Reconciler owns the line-item lifecycle. Every operation runs in one
// transaction spanning the product, the order and the line item, so
// product.stock and order.total always stay consistent with the set of
// live line items. Rows carry a version column; writes are accepted only
// against the version that was read, a mismatch rolls the whole
// operation back with ErrConcurrencyConflict.
type Reconciler struct{ DB postgres.DB }

type productRow struct {
	Price     decimal.Decimal
	Stock     int
	Available bool
	Version   int64
}

func readProduct(ctx context.Context, tx postgres.Tx, id string) (productRow, error) {
	var p productRow
	err := tx.QueryRow(ctx, `SELECT price, stock, available, version FROM products WHERE id=$1`, id).
		Scan(&p.Price, &p.Stock, &p.Available, &p.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return productRow{}, ErrProductNotFound
	}
	return p, err
}

func readOrderVersion(ctx context.Context, tx postgres.Tx, id string) (int64, error) {
	var v int64
	err := tx.QueryRow(ctx, `SELECT version FROM orders WHERE id=$1`, id).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrOrderNotFound
	}
	return v, err
}

// adjustStock applies a signed delta to product.stock. The schema CHECK
// keeps the result non-negative; the version guard detects a racing writer.
func adjustStock(ctx context.Context, tx postgres.Tx, productID string, delta int, version int64) error {
	ct, err := tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, version = version + 1, updated_at = now()
		WHERE id=$1 AND version=$3`, productID, delta, version)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrConcurrencyConflict
	}
	return nil
}

// adjustTotal applies a signed delta to order.total under a version guard.
func adjustTotal(ctx context.Context, tx postgres.Tx, orderID string, delta decimal.Decimal, version int64) error {
	ct, err := tx.Exec(ctx, `
		UPDATE orders SET total = total + $2, version = version + 1, updated_at = now()
		WHERE id=$1 AND version=$3`, orderID, delta, version)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrConcurrencyConflict
	}
	return nil
}

// AddItem puts qty units of a product on the order: inserts the line
// item, consumes stock and grows the total, all or nothing.
func (s *Reconciler) AddItem(ctx context.Context, orderID, productID string, qty int) (LineItem, error) {
	if qty <= 0 {
		return LineItem{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return LineItem{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ordVersion, err := readOrderVersion(ctx, tx, orderID)
	if err != nil {
		return LineItem{}, err
	}
	prod, err := readProduct(ctx, tx, productID)
	if err != nil {
		return LineItem{}, err
	}
	if !prod.Available {
		return LineItem{}, ErrProductUnavailable
	}
	if qty > prod.Stock {
		return LineItem{}, &StockError{Requested: qty, Available: prod.Stock}
	}

	item := LineItem{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  qty,
		Subtotal:  prod.Price.Mul(decimal.NewFromInt(int64(qty))),
		Version:   1,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO line_items(id, order_id, product_id, quantity, subtotal)
		VALUES ($1,$2,$3,$4,$5)`,
		item.ID, item.OrderID, item.ProductID, item.Quantity, item.Subtotal); err != nil {
		return LineItem{}, err
	}
	if err := adjustStock(ctx, tx, productID, qty, prod.Version); err != nil {
		return LineItem{}, err
	}
	if err := adjustTotal(ctx, tx, orderID, item.Subtotal, ordVersion); err != nil {
		return LineItem{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return LineItem{}, err
	}
	return item, nil
}

// UpdateItem changes a line item's quantity. The pre-image is re-read
// inside this transaction; client-supplied "original" values are never
// trusted. Only a quantity increase is checked against stock: the units
// already on the item stay consumed, so a decrease always succeeds.
func (s *Reconciler) UpdateItem(ctx context.Context, itemID string, newQty int) (LineItem, error) {
	if newQty <= 0 {
		return LineItem{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return LineItem{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	item := LineItem{ID: itemID}
	err = tx.QueryRow(ctx, `SELECT order_id, product_id, quantity, subtotal, version FROM line_items WHERE id=$1`, itemID).
		Scan(&item.OrderID, &item.ProductID, &item.Quantity, &item.Subtotal, &item.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return LineItem{}, ErrLineItemNotFound
	}
	if err != nil {
		return LineItem{}, err
	}

	ordVersion, err := readOrderVersion(ctx, tx, item.OrderID)
	if err != nil {
		return LineItem{}, err
	}
	prod, err := readProduct(ctx, tx, item.ProductID)
	if err != nil {
		return LineItem{}, err
	}
	if !prod.Available {
		return LineItem{}, ErrProductUnavailable
	}

	diff := newQty - item.Quantity
	if diff > 0 && diff > prod.Stock {
		return LineItem{}, &StockError{Requested: diff, Available: prod.Stock}
	}

	newSubtotal := prod.Price.Mul(decimal.NewFromInt(int64(newQty)))
	ct, err := tx.Exec(ctx, `
		UPDATE line_items SET quantity=$2, subtotal=$3, version=version+1
		WHERE id=$1 AND version=$4`, itemID, newQty, newSubtotal, item.Version)
	if err != nil {
		return LineItem{}, err
	}
	if ct.RowsAffected() == 0 {
		// Row gone entirely vs. changed under us.
		var n int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM line_items WHERE id=$1`, itemID).Scan(&n); err != nil {
			return LineItem{}, err
		}
		if n == 0 {
			return LineItem{}, ErrLineItemNotFound
		}
		return LineItem{}, ErrConcurrencyConflict
	}

	if diff != 0 {
		if err := adjustStock(ctx, tx, item.ProductID, diff, prod.Version); err != nil {
			return LineItem{}, err
		}
	}
	if err := adjustTotal(ctx, tx, item.OrderID, newSubtotal.Sub(item.Subtotal), ordVersion); err != nil {
		return LineItem{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return LineItem{}, err
	}

	item.Quantity = newQty
	item.Subtotal = newSubtotal
	item.Version++
	return item, nil
}

// RemoveItem deletes the line item, hands its units back to the product
// and shrinks the order total. A second remove of the same item fails
// with ErrLineItemNotFound; remove is intentionally not idempotent.
func (s *Reconciler) RemoveItem(ctx context.Context, itemID string) (LineItem, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return LineItem{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	item := LineItem{ID: itemID}
	err = tx.QueryRow(ctx, `SELECT order_id, product_id, quantity, subtotal, version FROM line_items WHERE id=$1`, itemID).
		Scan(&item.OrderID, &item.ProductID, &item.Quantity, &item.Subtotal, &item.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return LineItem{}, ErrLineItemNotFound
	}
	if err != nil {
		return LineItem{}, err
	}

	ordVersion, err := readOrderVersion(ctx, tx, item.OrderID)
	if err != nil {
		return LineItem{}, err
	}
	prod, err := readProduct(ctx, tx, item.ProductID)
	if err != nil {
		return LineItem{}, err
	}

	ct, err := tx.Exec(ctx, `DELETE FROM line_items WHERE id=$1 AND version=$2`, itemID, item.Version)
	if err != nil {
		return LineItem{}, err
	}
	if ct.RowsAffected() == 0 {
		return LineItem{}, ErrConcurrencyConflict
	}
	if err := adjustStock(ctx, tx, item.ProductID, -item.Quantity, prod.Version); err != nil {
		return LineItem{}, err
	}
	if err := adjustTotal(ctx, tx, item.OrderID, item.Subtotal.Neg(), ordVersion); err != nil {
		return LineItem{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return LineItem{}, err
	}
	return item, nil
}
