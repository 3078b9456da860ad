package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ariefcatur/go-order-desk/internal/postgres"
)

type ProductRepo struct{ DB postgres.DB }

const productCols = `id, sku, name, description, category, price, stock, available, version, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category,
		&p.Price, &p.Stock, &p.Available, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *ProductRepo) Get(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// List returns products ordered by SKU. With sellableOnly it keeps only
// products that may be placed on a new line item (available and in stock),
// the filter the order form offers.
func (r *ProductRepo) List(ctx context.Context, sellableOnly bool) ([]Product, error) {
	q := `SELECT ` + productCols + ` FROM products`
	if sellableOnly {
		q += ` WHERE available AND stock > 0`
	}
	q += ` ORDER BY sku`

	rows, err := r.DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func validateProduct(p Product) error {
	if p.SKU == "" || p.Name == "" {
		return fmt.Errorf("%w: sku and name are required", ErrInvalidInput)
	}
	if !p.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidInput)
	}
	return nil
}

func (r *ProductRepo) Create(ctx context.Context, p Product) (Product, error) {
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	p.ID = uuid.NewString()
	p.Version = 1
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(id, sku, name, description, category, price, stock, available)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		p.ID, p.SKU, p.Name, p.Description, p.Category, p.Price, p.Stock, p.Available,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return Product{}, fmt.Errorf("%w: sku already in use", ErrConflict)
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// Update writes the catalog fields only. Stock is deliberately not in the
// write set: the reconciliation ops are the sole stock writer.
func (r *ProductRepo) Update(ctx context.Context, p Product) (Product, error) {
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE products
		SET sku=$2, name=$3, description=$4, category=$5, price=$6, available=$7,
		    version=version+1, updated_at=now()
		WHERE id=$1 AND version=$8`,
		p.ID, p.SKU, p.Name, p.Description, p.Category, p.Price, p.Available, p.Version)
	if isUniqueViolation(err) {
		return Product{}, fmt.Errorf("%w: sku already in use", ErrConflict)
	}
	if err != nil {
		return Product{}, err
	}
	if ct.RowsAffected() == 0 {
		return Product{}, r.missingOrStale(ctx, p.ID)
	}
	return r.Get(ctx, p.ID)
}

// Delete refuses to remove a product that is still referenced by any
// line item (the schema enforces the same with ON DELETE RESTRICT).
func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var refs int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM line_items WHERE product_id=$1`, id).Scan(&refs); err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: product is referenced by %d line item(s)", ErrConflict, refs)
	}
	ct, err := tx.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return tx.Commit(ctx)
}

func (r *ProductRepo) missingOrStale(ctx context.Context, id string) error {
	var n int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE id=$1`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return ErrConcurrencyConflict
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
