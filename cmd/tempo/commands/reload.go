package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/sym"
)

// ReloadCmd re-reads the automation set
var ReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: sym.DB + " Re-read automations from the database",
	Long: sym.DB + ` Re-read enabled automations from the database and report how
many are scheduled. A running 'tempo run' with engine.watch_store picks up
changes by itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openSession(ctx, cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.engine.Reload(ctx)
		if err != nil {
			return err
		}
		pterm.Success.Printf("%d automations scheduled\n", n)
		return nil
	},
}

// SanitizeCmd repairs rows with invalid schedule data
var SanitizeCmd = &cobra.Command{
	Use:   "sanitize",
	Short: sym.DB + " Repair or disable automations with invalid schedule data",
	Long: sym.DB + ` Scan every stored automation. Invalid day tokens (for example a
date where a weekday was expected) are dropped; automations left with no
valid day, unreadable days or a malformed time are disabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openSession(ctx, cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		report, err := s.engine.Sanitize(ctx)
		if err != nil {
			return err
		}
		if !report.Changed() {
			pterm.Success.Printf("%d automations checked, nothing to repair\n", report.Scanned)
			return nil
		}
		for _, id := range report.Rewritten {
			pterm.Warning.Printf("%s: invalid day tokens removed\n", id)
		}
		for _, id := range report.Disabled {
			pterm.Warning.Printf("%s: disabled\n", id)
		}
		pterm.Success.Printf("%d automations checked\n", report.Scanned)
		return nil
	},
}
