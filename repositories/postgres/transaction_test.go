package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/services"
)

func TestTransactionManager_InTransactionCommits(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE knowledge_base").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tm.InTransaction(context.Background(), func(ctx context.Context) error {
		// The executor resolved inside the callback must be the open
		// transaction, not the pool.
		_, err := GetExecutor(ctx, db).ExecContext(ctx,
			"UPDATE knowledge_base SET active = false WHERE id = $1", 1)
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_InTransactionRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tm.InTransaction(context.Background(), func(ctx context.Context) error {
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_BeginFailure(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())

	mock.ExpectBegin().WillReturnError(assert.AnError)

	err := tm.InTransaction(context.Background(), func(ctx context.Context) error {
		t.Fatal("callback must not run when begin fails")
		return nil
	})

	assert.True(t, services.IsInternalError(err))
}

func TestGetExecutorFallsBackToPool(t *testing.T) {
	db, _ := newMockDB(t)

	exec := GetExecutor(context.Background(), db)
	assert.Equal(t, db.DB, exec)
}
