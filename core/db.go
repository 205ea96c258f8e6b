package core

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// DBExecutor is anything that can run queries: *sqlx.DB or *sqlx.Tx.
type DBExecutor interface {
	sqlx.ExtContext

	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

var (
	_ DBExecutor = (*sqlx.DB)(nil)
	_ DBExecutor = (*sqlx.Tx)(nil)
)
