package commands

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/teranos/tempo/am"
	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/invoke"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/temporal/engine"
)

// InitLogging configures the global logger from the -v count and [log].
// A config that fails to load falls back to the human-readable encoder.
func InitLogging(verbosity int) error {
	opts := logger.Options{Verbosity: verbosity}
	if cfg, err := am.Load(); err == nil {
		opts.JSON = cfg.Log.JSON
		opts.Theme = cfg.GetLogTheme()
	}
	return logger.InitializeWithOptions(opts)
}

// openDatabase opens and migrates the database. The --db-path flag wins
// over database.path.
func openDatabase(cmd *cobra.Command, cfg *am.Config) (*sql.DB, string, error) {
	dbPath, _ := cmd.Flags().GetString("db-path")
	if dbPath == "" {
		dbPath = cfg.GetDatabasePath()
	}
	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to open database at %s", dbPath)
	}
	return database, dbPath, nil
}

// session is an engine over an open database, closed together.
type session struct {
	cfg    *am.Config
	db     *sql.DB
	dbPath string
	engine *engine.Engine
}

func (s *session) Close() {
	s.engine.Stop()
	s.db.Close()
}

// openSession loads config, opens the database and wires an engine.
// bootstrap runs Init (seed, sanitize, reload); otherwise the registry is
// only reloaded so stored rows are left untouched.
func openSession(ctx context.Context, cmd *cobra.Command, bootstrap bool) (*session, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	database, dbPath, err := openDatabase(cmd, cfg)
	if err != nil {
		return nil, err
	}

	invoker, err := invoke.FromConfig(cfg, logger.Logger)
	if err != nil {
		database.Close()
		return nil, err
	}
	opts, err := engine.OptionsFromConfig(cfg)
	if err != nil {
		database.Close()
		return nil, err
	}
	if opts.WatchPath != "" {
		opts.WatchPath = dbPath
	}
	opts.Logger = logger.Logger

	eng := engine.New(database, invoker, opts)
	if bootstrap {
		err = eng.Init(ctx)
	} else {
		_, err = eng.Reload(ctx)
	}
	if err != nil {
		database.Close()
		return nil, err
	}
	return &session{cfg: cfg, db: database, dbPath: dbPath, engine: eng}, nil
}
