package db_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fleetdesk/leaveguard/internal/db"
	"github.com/fleetdesk/leaveguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openUoW(t *testing.T) (*sql.DB, *db.SQLiteUnitOfWork) {
	t.Helper()
	database, err := db.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database, db.NewSQLiteUnitOfWork(database)
}

func insertVehicle(ctx context.Context, tx db.DBTX, id string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO vehicles (id, plate, capacity) VALUES (?, ?, 20)`, id, "PL-"+id)
	return err
}

func vehicleExists(t *testing.T, database *sql.DB, id string) bool {
	t.Helper()
	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM vehicles WHERE id = ?`, id).Scan(&n))
	return n == 1
}

func TestWithinTx_CommitOnSuccess(t *testing.T) {
	database, uow := openUoW(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		return insertVehicle(ctx, tx, "v-1")
	})
	require.NoError(t, err)
	assert.True(t, vehicleExists(t, database, "v-1"))
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	database, uow := openUoW(t)
	boom := errors.New("deliberate failure")

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertVehicle(ctx, tx, "v-2"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, vehicleExists(t, database, "v-2"))
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	database, uow := openUoW(t)

	assert.Panics(t, func() {
		_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
			_ = insertVehicle(ctx, tx, "v-3")
			panic("boom")
		})
	})
	assert.False(t, vehicleExists(t, database, "v-3"))
}

func TestWithinTx_BusyWriterIsConcurrentModification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.db")
	holder, err := db.OpenDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { holder.Close() })

	// A second handle that gives up immediately instead of waiting.
	impatient, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(0)")
	require.NoError(t, err)
	t.Cleanup(func() { impatient.Close() })

	ctx := context.Background()
	tx, err := holder.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, insertVehicle(ctx, tx, "v-held"))
	t.Cleanup(func() { _ = tx.Rollback() })

	err = db.NewSQLiteUnitOfWork(impatient).WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return insertVehicle(ctx, tx, "v-late")
	})
	require.Error(t, err)
	assert.True(t, db.IsBusy(err))
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.True(t, domain.IsRetryable(err))
}

func TestIsBusy_OtherErrors(t *testing.T) {
	assert.False(t, db.IsBusy(nil))
	assert.False(t, db.IsBusy(errors.New("database is locked")), "only driver errors are inspected")

	_, uow := openUoW(t)
	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO no_such_table VALUES (1)`)
		return err
	})
	require.Error(t, err)
	assert.False(t, db.IsBusy(err))
	assert.NotErrorIs(t, err, domain.ErrConcurrentModification)
}
