package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the slice of *pgxpool.Pool the repositories use. Keeping it
// narrow lets package tests swap in a hand-rolled mock.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (Tx, error)
}

type Tx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Pool adapts *pgxpool.Pool to DB (BeginTx must return the narrow Tx).
type Pool struct{ *pgxpool.Pool }

func (p Pool) BeginTx(ctx context.Context, opts pgx.TxOptions) (Tx, error) {
	return p.Pool.BeginTx(ctx, opts)
}

func Connect(ctx context.Context, dsn string) (Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return Pool{}, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return Pool{}, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return Pool{}, err
	}
	return Pool{pool}, nil
}
