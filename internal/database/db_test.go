package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t, "config", ProfileStandard)

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())

	var n int
	err := db.Conn().QueryRow(
		"SELECT count(*) FROM sqlite_master WHERE type='table' AND name='settings'").Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMigrate_RecordsSchema(t *testing.T) {
	db := openTestDB(t, "records", ProfileRecords)
	require.NoError(t, db.Migrate())

	for _, table := range []string{"hall_of_fame", "ranking_snapshots"} {
		var n int
		err := db.Conn().QueryRow(
			"SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestWithTransaction_CommitAndRollback(t *testing.T) {
	db := openTestDB(t, "config", ProfileStandard)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO settings (key, value) VALUES ('a', '1')")
		return err
	})
	require.NoError(t, err)

	failure := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO settings (key, value) VALUES ('b', '2')"); err != nil {
			return err
		}
		return failure
	})
	require.ErrorIs(t, err, failure)

	var n int
	require.NoError(t, db.Conn().QueryRow("SELECT count(*) FROM settings").Scan(&n))
	assert.Equal(t, 1, n, "rolled-back insert must not persist")
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := openTestDB(t, "config", ProfileStandard)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("unexpected")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestHealthChecks(t *testing.T) {
	db := openTestDB(t, "records", ProfileRecords)
	require.NoError(t, db.Migrate())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, db.QuickCheck(ctx))
	assert.NoError(t, db.HealthCheck(ctx))
	assert.NoError(t, db.WALCheckpoint("TRUNCATE"))
}
