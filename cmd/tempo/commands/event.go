package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/sym"
	"github.com/teranos/tempo/temporal/engine"
	"github.com/teranos/tempo/temporal/schedule"
)

// EventCmd groups automation management
var EventCmd = &cobra.Command{
	Use:     "event",
	Aliases: []string{"at"},
	Short:   sym.AT + " Manage scheduled automations",
	Long: sym.AT + ` event - manage scheduled automations.

Day tokens: daily, weekday, weekend, monday ... sunday.

Examples:
  tempo event add --name Standup --target saga --at 09:15 --days weekday --payload "standup notes"
  tempo event ls
  tempo event show standup
  tempo event toggle standup off
  tempo event trigger standup
  tempo event trigger --test
  tempo event today
  tempo event rm standup`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var eventAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace an automation",
	Long: `Add an automation, or replace the one with the same --id.
Without --id a random id is generated.`,
	RunE: runEventAdd,
}

var eventLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List automations, including disabled and invalid rows",
	RunE:  runEventLs,
}

var eventShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an automation with its next run and recent executions",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventShow,
}

var eventToggleCmd = &cobra.Command{
	Use:   "toggle <id> <on|off>",
	Short: "Enable or disable an automation",
	Args:  cobra.ExactArgs(2),
	RunE:  runEventToggle,
}

var eventTriggerCmd = &cobra.Command{
	Use:   "trigger [id]",
	Short: sym.SO + " Fire an automation now",
	Long: sym.SO + ` Fire an automation now, even when it is disabled.
An automation that already ran today is skipped.

With --test an unsaved automation is invoked once and nothing is recorded.
--target and --payload override the built-in test automation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEventTrigger,
}

var eventTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List automations scheduled for today",
	RunE:  runEventToday,
}

var eventRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete an automation (its execution history is kept)",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventRm,
}

func init() {
	eventAddCmd.Flags().String("id", "", "Automation id (generated when empty)")
	eventAddCmd.Flags().String("name", "", "Display name")
	eventAddCmd.Flags().String("target", "", "Collaborator target")
	eventAddCmd.Flags().String("payload", "", "Payload sent to the target")
	eventAddCmd.Flags().String("at", "", "Time of day, HH:MM (24h)")
	eventAddCmd.Flags().StringSlice("days", []string{schedule.DayDaily}, "Day tokens")
	eventAddCmd.Flags().Bool("disabled", false, "Store without enabling")
	_ = eventAddCmd.MarkFlagRequired("target")
	_ = eventAddCmd.MarkFlagRequired("at")

	eventLsCmd.Flags().Bool("json", false, "Output as JSON")
	eventShowCmd.Flags().Bool("json", false, "Output as JSON")
	eventTodayCmd.Flags().Bool("json", false, "Output as JSON")

	eventTriggerCmd.Flags().Bool("test", false, "Invoke an unsaved test automation")
	eventTriggerCmd.Flags().String("target", "", "Test automation target")
	eventTriggerCmd.Flags().String("payload", "", "Test automation payload")

	EventCmd.AddCommand(eventAddCmd)
	EventCmd.AddCommand(eventLsCmd)
	EventCmd.AddCommand(eventShowCmd)
	EventCmd.AddCommand(eventToggleCmd)
	EventCmd.AddCommand(eventTriggerCmd)
	EventCmd.AddCommand(eventTodayCmd)
	EventCmd.AddCommand(eventRmCmd)
}

func runEventAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := openSession(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	ev := &schedule.ScheduledEvent{}
	ev.ID, _ = cmd.Flags().GetString("id")
	ev.Name, _ = cmd.Flags().GetString("name")
	ev.Target, _ = cmd.Flags().GetString("target")
	ev.Payload, _ = cmd.Flags().GetString("payload")
	ev.ScheduleTime, _ = cmd.Flags().GetString("at")
	ev.Days, _ = cmd.Flags().GetStringSlice("days")
	disabled, _ := cmd.Flags().GetBool("disabled")
	ev.Enabled = !disabled
	if ev.Name == "" {
		ev.Name = ev.ID
	}

	saved, err := s.engine.AddEvent(ctx, ev)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Saved %s: %s at %s on %s\n",
		saved.ID, saved.Target, saved.ScheduleTime, formatDays(saved.Days))
	return nil
}

func runEventLs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := openSession(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	events, err := s.engine.Events(ctx)
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(listings(events))
	}
	if len(events) == 0 {
		pterm.Info.Println("No automations. Add one with 'tempo event add'.")
		return nil
	}

	loc := s.engine.Location()
	rows := make([][]string, 0, len(events))
	for _, se := range events {
		if se.Invalid != nil {
			rows = append(rows, []string{
				se.Raw.ID, se.Raw.Name, se.Raw.Target, se.Raw.ScheduleTime, se.Raw.Days,
				pterm.Red("invalid"), pterm.Gray(se.Invalid.Error()),
			})
			continue
		}
		ev := se.Event
		rows = append(rows, []string{
			ev.ID, ev.Name, ev.Target, ev.ScheduleTime, formatDays(ev.Days),
			formatEnabled(ev.Enabled), formatLastRun(ev.LastRun, loc),
		})
	}
	return renderTable([]string{"ID", "Name", "Target", "At", "Days", "State", "Last run"}, rows)
}

// eventListing is the JSON shape of one stored row
type eventListing struct {
	ID      string                   `json:"id"`
	Event   *schedule.ScheduledEvent `json:"event,omitempty"`
	Days    string                   `json:"raw_days,omitempty"`
	Invalid string                   `json:"invalid,omitempty"`
}

func listings(events []schedule.StoredEvent) []eventListing {
	out := make([]eventListing, 0, len(events))
	for _, se := range events {
		l := eventListing{ID: se.Raw.ID, Event: se.Event}
		if se.Invalid != nil {
			l.Days = se.Raw.Days
			l.Invalid = se.Invalid.Error()
		}
		out = append(out, l)
	}
	return out
}

func runEventShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := openSession(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := s.engine.Details(ctx, args[0])
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(d)
	}

	loc := s.engine.Location()
	ev := d.Event
	pterm.DefaultSection.Println(sym.AT + " " + ev.Name)
	pterm.Printf("%s %s\n", pterm.Gray("ID:       "), ev.ID)
	pterm.Printf("%s %s\n", pterm.Gray("Target:   "), ev.Target)
	pterm.Printf("%s %s on %s\n", pterm.Gray("Schedule: "), ev.ScheduleTime, formatDays(ev.Days))
	pterm.Printf("%s %s\n", pterm.Gray("State:    "), formatEnabled(ev.Enabled))
	pterm.Printf("%s %s\n", pterm.Gray("Last run: "), formatLastRun(ev.LastRun, loc))
	if d.Next != nil {
		pterm.Printf("%s %s\n", pterm.Gray("Next:     "), d.Next.In(loc).Format(timeLayout))
	}
	if ev.CreatedBy != "" {
		pterm.Printf("%s %s\n", pterm.Gray("Created:  "), ev.CreatedBy)
	}
	pterm.Printf("%s %s\n", pterm.Gray("Payload:  "), ev.Payload)

	if len(d.Logs) == 0 {
		return nil
	}
	fmt.Println()
	rows := make([][]string, 0, len(d.Logs))
	for _, l := range d.Logs {
		rows = append(rows, logRow(l, loc))
	}
	return renderTable([]string{"#", "Executed", "Result", "Output"}, rows)
}

func runEventToggle(cmd *cobra.Command, args []string) error {
	enabled, err := parseToggleState(args[1])
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := openSession(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.engine.Toggle(ctx, args[0], enabled); err != nil {
		return err
	}
	pterm.Success.Printf("%s is now %s\n", args[0], formatEnabled(enabled))
	return nil
}

// parseToggleState accepts on/off and their usual synonyms
func parseToggleState(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "enable", "enabled", "true", "1":
		return true, nil
	case "off", "disable", "disabled", "false", "0":
		return false, nil
	}
	return false, errors.WithHint(errors.Newf("unknown state %q", s), "use on or off")
}

func runEventTrigger(cmd *cobra.Command, args []string) error {
	test, _ := cmd.Flags().GetBool("test")
	if !test && len(args) == 0 {
		return errors.New("an automation id is required unless --test is given")
	}

	ctx := context.Background()
	s, err := openSession(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	var res *engine.Result
	if test {
		ev := engine.DefaultTestEvent()
		if len(args) == 1 {
			ev.ID = args[0]
		}
		if target, _ := cmd.Flags().GetString("target"); target != "" {
			ev.Target = target
		}
		if payload, _ := cmd.Flags().GetString("payload"); payload != "" {
			ev.Payload = payload
		}
		res, err = s.engine.TestEvent(ctx, ev)
	} else {
		res, err = s.engine.TriggerNow(ctx, args[0])
	}
	if res != nil {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		printResult(res, verbosity)
	}
	return err
}

func runEventToday(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := openSession(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	today, err := s.engine.Today(ctx)
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(today)
	}
	if len(today) == 0 {
		pterm.Info.Println("Nothing scheduled today")
		return nil
	}

	rows := make([][]string, 0, len(today))
	for _, e := range today {
		done := pterm.Gray("pending")
		if e.Done {
			done = pterm.Green("done")
		}
		rows = append(rows, []string{e.At.Format("15:04"), e.Event.ID, e.Event.Name, e.Event.Target, done})
	}
	return renderTable([]string{"At", "ID", "Name", "Target", ""}, rows)
}

func runEventRm(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := openSession(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.engine.RemoveEvent(ctx, args[0]); err != nil {
		return err
	}
	pterm.Success.Printf("Removed %s\n", args[0])
	return nil
}
