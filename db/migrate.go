package db

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/sym"
)

//go:embed sqlite/migrations/*.sql
var migrationFS embed.FS

const migrationDir = "sqlite/migrations"

// Migration is one embedded schema step, keyed by the numeric prefix of
// its file name.
type Migration struct {
	Version   string     `json:"version"`
	File      string     `json:"file"`
	AppliedAt *time.Time `json:"applied_at,omitempty"` // nil while pending
}

// Pending reports whether the migration has not been applied yet.
func (m Migration) Pending() bool { return m.AppliedAt == nil }

// Migrations lists the embedded migrations in version order, each with
// the time it was applied to database (if it was).
func Migrations(database *sql.DB) ([]Migration, error) {
	all, err := embedded()
	if err != nil {
		return nil, err
	}
	applied, err := appliedVersions(database)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if at, ok := applied[all[i].Version]; ok {
			all[i].AppliedAt = &at
		}
	}
	return all, nil
}

// Migrate applies pending migrations in version order, each in its own
// transaction, and returns the versions it applied.
// If logger is provided, logs migration progress; otherwise operates silently.
func Migrate(database *sql.DB, logger *zap.SugaredLogger) ([]string, error) {
	all, err := Migrations(database)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range all {
		if !m.Pending() {
			continue
		}
		if logger != nil {
			logger.Infow("Applying migration", "migration", m.File, "version", m.Version)
		}
		if err := apply(database, m); err != nil {
			return applied, err
		}
		applied = append(applied, m.Version)
	}

	if logger != nil && len(applied) > 0 {
		logger.Infow("Schema up to date",
			"symbol", sym.DB,
			"applied", strings.Join(applied, ","),
			"total_migrations", len(all))
	}
	return applied, nil
}

func embedded() ([]Migration, error) {
	entries, err := migrationFS.ReadDir(migrationDir)
	if err != nil {
		return nil, errors.Wrap(err, "read embedded migrations")
	}
	var out []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		out = append(out, Migration{Version: strings.SplitN(name, "_", 2)[0], File: name})
	}
	// 000 creates schema_migrations, so it must sort first
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// appliedVersions maps version to applied_at. A database without the
// bookkeeping table has nothing applied.
func appliedVersions(database *sql.DB) (map[string]time.Time, error) {
	var tables int
	err := database.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`,
	).Scan(&tables)
	if err != nil {
		return nil, errors.Wrap(err, "inspect schema")
	}
	applied := make(map[string]time.Time)
	if tables == 0 {
		return applied, nil
	}

	rows, err := database.Query(`SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, errors.Wrap(err, "read schema_migrations")
	}
	defer rows.Close()
	for rows.Next() {
		var version string
		var at sql.NullString
		if err := rows.Scan(&version, &at); err != nil {
			return nil, errors.Wrap(err, "scan schema_migrations")
		}
		applied[version] = parseAppliedAt(at.String)
	}
	return applied, errors.Wrap(rows.Err(), "iterate schema_migrations")
}

// parseAppliedAt accepts CURRENT_TIMESTAMP text and the RFC3339 form the
// driver produces for TIMESTAMP columns. Unparseable values map to zero.
func parseAppliedAt(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func apply(database *sql.DB, m Migration) error {
	body, err := migrationFS.ReadFile(path.Join(migrationDir, m.File))
	if err != nil {
		return errors.Wrapf(err, "read %s", m.File)
	}

	tx, err := database.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", m.File)
	}
	if _, err := tx.Exec(string(body)); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "execute %s", m.File)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.Version); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "record %s", m.File)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", m.File)
}
