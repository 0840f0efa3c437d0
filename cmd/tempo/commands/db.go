package commands

import (
	"database/sql"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/am"
	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/sym"
)

// DbCmd groups schema maintenance commands
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Inspect and migrate the tempo database",
	Long: sym.DB + ` Inspect and migrate the tempo database.

Every other command migrates on open; these show what was applied and when.

Examples:
  tempo db status          # List migrations and when they were applied
  tempo db status --json   # Same, as JSON
  tempo db migrate         # Apply pending migrations`,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List schema migrations and their state",
	RunE:  runDbStatus,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

func init() {
	DbCmd.AddCommand(dbStatusCmd)
	DbCmd.AddCommand(dbMigrateCmd)
	dbStatusCmd.Flags().Bool("json", false, "Output as JSON")
}

// openRawDatabase opens the database without migrating it.
func openRawDatabase(cmd *cobra.Command) (*sql.DB, string, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to load config")
	}
	dbPath, _ := cmd.Flags().GetString("db-path")
	if dbPath == "" {
		dbPath = cfg.GetDatabasePath()
	}
	database, err := db.Open(dbPath, logger.Logger)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to open database at %s", dbPath)
	}
	return database, dbPath, nil
}

func runDbStatus(cmd *cobra.Command, args []string) error {
	database, dbPath, err := openRawDatabase(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	migrations, err := db.Migrations(database)
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(migrations)
	}

	pterm.Printf("%s %s\n\n", pterm.Gray("Database:"), dbPath)
	if err := renderTable([]string{"VERSION", "FILE", "APPLIED"}, migrationRows(migrations)); err != nil {
		return err
	}
	if n := pendingCount(migrations); n > 0 {
		pterm.Warning.Printf("%d pending; run 'tempo db migrate'\n", n)
	}
	return nil
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	database, dbPath, err := openRawDatabase(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	applied, err := db.Migrate(database, logger.Logger)
	for _, v := range applied {
		pterm.Success.Printf("applied %s\n", v)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to migrate %s", dbPath)
	}
	if len(applied) == 0 {
		pterm.Info.Println("Schema already up to date")
	}
	return nil
}

func migrationRows(migrations []db.Migration) [][]string {
	rows := make([][]string, 0, len(migrations))
	for _, m := range migrations {
		applied := "pending"
		if !m.Pending() {
			applied = m.AppliedAt.Format(timeLayout)
		}
		rows = append(rows, []string{m.Version, m.File, applied})
	}
	return rows
}

func pendingCount(migrations []db.Migration) int {
	n := 0
	for _, m := range migrations {
		if m.Pending() {
			n++
		}
	}
	return n
}
