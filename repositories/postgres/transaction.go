package postgres

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/repositories"
	"github.com/brightsmile/dental-assistant/services"
)

// txContextKey carries the open transaction through the context so that
// repository calls made inside InTransaction execute on it.
type txContextKey struct{}

// TransactionManager runs functions inside a database transaction
type TransactionManager struct {
	db     *DB
	logger *zap.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(db *DB, logger *zap.Logger) repositories.TransactionManager {
	return &TransactionManager{
		db:     db,
		logger: logger,
	}
}

// InTransaction executes fn within a transaction: commit when fn returns
// nil, rollback otherwise. fn receives a derived context holding the
// transaction; repositories resolve it through GetExecutor.
func (tm *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return services.WrapInternal("failed to begin transaction", err)
	}

	txCtx := context.WithValue(ctx, txContextKey{}, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			tm.logger.Error("failed to rollback transaction",
				zap.Error(rbErr),
				zap.NamedError("original_error", err))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return services.WrapInternal("failed to commit transaction", err)
	}

	tm.logger.Debug("transaction committed")
	return nil
}

// Executor is an interface that can execute queries (both *sql.DB and *sql.Tx)
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetExecutor returns the transaction bound to the context, or the
// connection pool when none is
func GetExecutor(ctx context.Context, db *DB) Executor {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return db.DB
}
