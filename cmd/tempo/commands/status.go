package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/sym"
	"github.com/teranos/tempo/temporal/schedule"
)

// StatusCmd shows the engine snapshot
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: sym.Pulse + " Show engine state, pending and next automations",
	RunE:  runStatus,
}

// RecentCmd shows execution history
var RecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show executions from the last hours",
	Long: `Show executions from the last --hours, newest first. Executions
whose automation was deleted show as Unknown.

Examples:
  tempo recent              # Last 24 hours
  tempo recent --hours 72   # Last three days`,
	RunE: runRecent,
}

func init() {
	StatusCmd.Flags().Bool("json", false, "Output as JSON")
	RecentCmd.Flags().Int("hours", 24, "How far back to look")
	RecentCmd.Flags().Bool("json", false, "Output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := openSession(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.engine.Status(ctx)
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(st)
	}

	tc := st.Context
	pterm.DefaultSection.Println(sym.Pulse + " tempo status")
	pterm.Printf("%s %s (%s)\n", pterm.Gray("Now:        "), tc.Now.Format(timeLayout), tc.Timezone)
	pterm.Printf("%s %s, %s, %s\n", pterm.Gray("Context:    "), tc.Weekday, tc.Segment, tc.Season)
	pterm.Printf("%s %d enabled of %d\n", pterm.Gray("Automations:"), st.EnabledEvents, st.TotalEvents)
	pterm.Printf("%s %d\n", pterm.Gray("Ran today:  "), st.ExecutionsToday)
	if st.Next != nil {
		pterm.Printf("%s %s at %s (in %s)\n", pterm.Gray("Next:       "),
			st.Next.Event.Name, st.Next.At.Format(timeLayout), formatDuration(st.Next.In))
	}
	if st.Degraded {
		pterm.Warning.Println("Database unreadable; figures come from memory")
	}

	if st.PendingCount > 0 {
		fmt.Println()
		pterm.Info.Printf("%d pending\n", st.PendingCount)
		for _, ev := range st.Pending {
			pterm.Printf("  %s %s %s %s\n", pterm.Yellow(ev.ScheduleTime), ev.ID, pterm.Gray("→"), ev.Target)
		}
	}

	if len(st.Recent) > 0 {
		fmt.Println()
		return renderRecords(st.Recent, s.engine.Location())
	}
	return nil
}

func runRecent(cmd *cobra.Command, args []string) error {
	hours, _ := cmd.Flags().GetInt("hours")

	ctx := context.Background()
	s, err := openSession(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	view, err := s.engine.Recent(ctx, hours)
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(view)
	}
	if view.Degraded {
		pterm.Warning.Println("Database unreadable; showing this process's executions only")
	}
	if len(view.Records) == 0 {
		pterm.Info.Printf("No executions in the last %d hours\n", view.Hours)
		return nil
	}
	return renderRecords(view.Records, s.engine.Location())
}

func renderRecords(records []schedule.ExecutionRecord, loc *time.Location) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ExecutedAt.In(loc).Format(timeLayout),
			r.EventName,
			r.EventTarget,
			outcomeLabel(r.Success),
			summaryLine(r.ExecutionLog),
		})
	}
	return renderTable([]string{"Executed", "Automation", "Target", "Result", "Output"}, rows)
}

func logRow(l schedule.ExecutionLog, loc *time.Location) []string {
	return []string{
		strconv.FormatInt(l.ID, 10),
		l.ExecutedAt.In(loc).Format(timeLayout),
		outcomeLabel(l.Success),
		summaryLine(l),
	}
}

func outcomeLabel(success bool) string {
	if success {
		return pterm.Green("ok")
	}
	return pterm.Red("failed")
}

// summaryLine is the first line of the result or error, cut to 60 runes
func summaryLine(l schedule.ExecutionLog) string {
	text := l.Result
	if !l.Success {
		text = l.Error
	}
	for i, r := range text {
		if r == '\n' {
			text = text[:i]
			break
		}
	}
	runes := []rune(text)
	if len(runes) > 60 {
		return string(runes[:57]) + "..."
	}
	return text
}
