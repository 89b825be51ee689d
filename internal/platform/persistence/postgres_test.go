package persistence

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestPostgresDB_Pool(t *testing.T) {
	var nilPool *pgxpool.Pool
	db := &PostgresDB{
		pool:   nilPool,
		logger: newTestLogger(),
	}
	assert.Equal(t, nilPool, db.Pool(), "Pool() should return the initialized pool")
}

func TestRunInTx(t *testing.T) {
	ctx := context.Background()
	query := `UPDATE bulk_sms_batches SET lifecycle_state = \$1`

	t.Run("commits on success", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec(query).WithArgs("CONFIRMED").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = runInTx(ctx, mock, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, "UPDATE bulk_sms_batches SET lifecycle_state = $1", "CONFIRMED")
			return err
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		fnErr := errors.New("ledger insert failed")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err = runInTx(ctx, mock, func(tx pgx.Tx) error {
			return fnErr
		})

		assert.ErrorIs(t, err, fnErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports rollback failure with original error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		fnErr := errors.New("ledger insert failed")
		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(errors.New("conn closed"))

		err = runInTx(ctx, mock, func(tx pgx.Tx) error {
			return fnErr
		})

		assert.ErrorIs(t, err, fnErr)
		assert.Contains(t, err.Error(), "rb err: conn closed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = runInTx(ctx, mock, func(tx pgx.Tx) error {
				panic("boom")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		called := false
		err = runInTx(ctx, mock, func(tx pgx.Tx) error {
			called = true
			return nil
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
		assert.False(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("could not serialize access"))

		err = runInTx(ctx, mock, func(tx pgx.Tx) error { return nil })

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
