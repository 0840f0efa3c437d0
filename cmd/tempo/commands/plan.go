package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/sym"
	"github.com/teranos/tempo/temporal/engine"
	"github.com/teranos/tempo/temporal/schedule"
)

// PlanCmd groups daily plan commands
var PlanCmd = &cobra.Command{
	Use:   "plan",
	Short: sym.Plan + " Create and show daily plans",
	Long: sym.Plan + ` plan - daily plans.

A plan file lists the automations a planner wants on one date. Each is
stored as an automation running on that date's weekday; the plan itself
is kept as a record.

Plan file (YAML or JSON):
  date: "2025-07-05"
  created_by: odin
  notes: rainy saturday
  events:
    - name: Museum Visit
      target: luci
      schedule_time: "11:00"
      payload: find an exhibit

Examples:
  tempo plan create plan.yaml
  tempo plan create plan.yaml --date 2025-07-06
  tempo plan show 2025-07-05`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var planCreateCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "Create a daily plan from a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanCreate,
}

var planShowCmd = &cobra.Command{
	Use:   "show [date]",
	Short: "Show the plan for a date (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlanShow,
}

func init() {
	planCreateCmd.Flags().String("date", "", "Plan date YYYY-MM-DD (overrides the file)")
	planCreateCmd.Flags().String("by", "", "Planner name (overrides the file)")
	planShowCmd.Flags().Bool("json", false, "Output as JSON")

	PlanCmd.AddCommand(planCreateCmd)
	PlanCmd.AddCommand(planShowCmd)
}

// planFile is the on-disk shape of a plan request
type planFile struct {
	Date      string                  `yaml:"date"`
	CreatedBy string                  `yaml:"created_by"`
	Notes     string                  `yaml:"notes"`
	Events    []schedule.PlannedEvent `yaml:"events"`
}

func parsePlanFile(data []byte) (engine.PlanRequest, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return engine.PlanRequest{}, errors.Wrap(err, "failed to parse plan file")
	}
	if len(f.Events) == 0 {
		return engine.PlanRequest{}, errors.New("plan file has no events")
	}
	return engine.PlanRequest{Date: f.Date, Events: f.Events, CreatedBy: f.CreatedBy, Notes: f.Notes}, nil
}

func runPlanCreate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", args[0])
	}
	req, err := parsePlanFile(data)
	if err != nil {
		return err
	}
	if date, _ := cmd.Flags().GetString("date"); date != "" {
		req.Date = date
	}
	if by, _ := cmd.Flags().GetString("by"); by != "" {
		req.CreatedBy = by
	}

	ctx := context.Background()
	s, err := openSession(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	plan, err := s.engine.CreateDailyPlan(ctx, req)
	if err != nil {
		return err
	}
	pterm.Success.Printf("%s Plan for %s by %s: %d automations\n", sym.Plan, plan.Date, plan.CreatedBy, len(plan.Events))
	for _, p := range plan.Events {
		pterm.Printf("  %s %s %s %s\n", pterm.Yellow(p.ScheduleTime), p.ID, pterm.Gray("→"), p.Target)
	}
	return nil
}

func runPlanShow(cmd *cobra.Command, args []string) error {
	date := ""
	if len(args) == 1 {
		date = args[0]
	}

	ctx := context.Background()
	s, err := openSession(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	plan, err := s.engine.DailyPlan(ctx, date)
	if err != nil {
		return err
	}
	if plan == nil {
		if date == "" {
			date = "today"
		}
		pterm.Info.Printf("No plan for %s\n", date)
		return nil
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(plan)
	}

	pterm.DefaultSection.Println(fmt.Sprintf("%s Plan %s", sym.Plan, plan.Date))
	pterm.Printf("%s %s at %s\n", pterm.Gray("Created by:"), plan.CreatedBy, plan.CreatedAt.In(s.engine.Location()).Format(timeLayout))
	if plan.Notes != "" {
		pterm.Printf("%s %s\n", pterm.Gray("Notes:     "), plan.Notes)
	}
	rows := make([][]string, 0, len(plan.Events))
	for _, p := range plan.Events {
		rows = append(rows, []string{p.ScheduleTime, p.ID, p.Name, p.Target})
	}
	return renderTable([]string{"At", "ID", "Name", "Target"}, rows)
}
