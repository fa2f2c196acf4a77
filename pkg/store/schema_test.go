package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(driverName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateSchema(t *testing.T) {
	db := openDB(t)
	require.NoError(t, CreateSchema(db))

	var version int
	require.NoError(t, db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version))
	assert.Equal(t, SchemaVersion, version)

	for _, table := range []string{"signatures", "targets", "provenance", "verdicts", "detections"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestCreateSchema_Idempotent(t *testing.T) {
	db := openDB(t)
	require.NoError(t, CreateSchema(db))
	assert.NoError(t, CreateSchema(db))
}

func TestCreateSchema_RejectsOtherVersions(t *testing.T) {
	db := openDB(t)
	_, err := db.Exec("CREATE TABLE schema_version (version INTEGER NOT NULL)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO schema_version (version) VALUES (70)")
	require.NoError(t, err)

	err = CreateSchema(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version 70")
}
