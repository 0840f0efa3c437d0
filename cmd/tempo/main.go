package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/tempo/cmd/tempo/commands"
	"github.com/teranos/tempo/logger"
)

var rootCmd = &cobra.Command{
	Use:   "tempo",
	Short: "tempo - temporal automation engine",
	Long: `tempo - runs recurring automations at their scheduled time of day.

Each automation sends a payload to a collaborator target at HH:MM on the
days it selects, at most once per calendar day in the engine timezone.

Available commands:
  run       - Start the scheduling loop
  event     - Add, list, toggle and trigger automations
  status    - Show engine state, pending and next automations
  recent    - Show execution history
  plan      - Create and show daily plans
  reload    - Re-read automations from the database
  sanitize  - Repair or disable automations with invalid schedule data
  db        - Inspect and migrate the database schema
  am        - Show and validate configuration ("I am")
  version   - Show build information

Examples:
  tempo run -v                 # Start the loop with info logging
  tempo event ls               # List automations
  tempo event trigger standup  # Fire an automation now
  tempo status                 # What is due, what is next`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := commands.InitLogging(verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().String("db-path", "", "Database path (overrides database.path)")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.EventCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.RecentCmd)
	rootCmd.AddCommand(commands.PlanCmd)
	rootCmd.AddCommand(commands.ReloadCmd)
	rootCmd.AddCommand(commands.SanitizeCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
