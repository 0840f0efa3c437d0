package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	t.Run("applies every migration once", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		applied, err := Migrate(db, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"000", "001"}, applied)

		applied, err = Migrate(db, nil)
		require.NoError(t, err, "running migrations multiple times should be safe")
		assert.Empty(t, applied)
	})

	t.Run("execution logs outlive events", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()
		_, err = Migrate(db, nil)
		require.NoError(t, err)

		_, err = db.Exec(`INSERT INTO execution_logs (event_id, executed_at, success, result) VALUES ('gone', '2025-01-01T08:00:00Z', 1, 'ok')`)
		require.NoError(t, err, "no foreign key ties logs to scheduled_events")
	})

	t.Run("closed database fails", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		db.Close()

		_, err = Migrate(db, nil)
		assert.Error(t, err)
	})
}

func TestMigrations(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	list, err := Migrations(db)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, m := range list {
		assert.True(t, m.Pending(), m.File)
	}
	assert.Equal(t, "000_create_schema_migrations.sql", list[0].File)

	before := time.Now().UTC().Add(-time.Minute)
	_, err = Migrate(db, nil)
	require.NoError(t, err)

	list, err = Migrations(db)
	require.NoError(t, err)
	for _, m := range list {
		require.False(t, m.Pending(), m.File)
		assert.True(t, m.AppliedAt.After(before), "applied_at %s", m.AppliedAt)
	}
}

func TestParseAppliedAt(t *testing.T) {
	want := time.Date(2025, 7, 1, 12, 0, 5, 0, time.UTC)
	assert.Equal(t, want, parseAppliedAt("2025-07-01 12:00:05"))
	assert.Equal(t, want, parseAppliedAt("2025-07-01T12:00:05Z"))
	assert.True(t, parseAppliedAt("garbage").IsZero())
}
