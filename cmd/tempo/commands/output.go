package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/internal/util"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/temporal/engine"
)

const timeLayout = "2006-01-02 15:04"

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	fmt.Println(string(data))
	return nil
}

func renderTable(header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func formatDays(days []string) string {
	return strings.Join(days, ",")
}

func formatLastRun(t *time.Time, loc *time.Location) string {
	if t == nil {
		return pterm.Gray("never")
	}
	return t.In(loc).Format(timeLayout)
}

func formatEnabled(enabled bool) string {
	if enabled {
		return pterm.Green("on")
	}
	return pterm.Gray("off")
}

// formatDuration renders d as "1h05m" or "12m"
func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// outputPreviewLength caps echoed collaborator output below trace verbosity.
const outputPreviewLength = 500

// printResult writes the one-line summary of an execution.
func printResult(res *engine.Result, verbosity int) {
	switch res.Outcome {
	case engine.OutcomeSucceeded:
		pterm.Success.Printf("%s -> %s%s\n", res.EventID, res.Target, resultTiming(res, verbosity))
		if out := resultOutput(res, verbosity); out != "" {
			pterm.Printf("  %s %s\n", pterm.Gray("→"), out)
		}
	case engine.OutcomeFailed:
		pterm.Error.Printf("%s -> %s: %s%s\n", res.EventID, res.Target, res.Error, resultTiming(res, verbosity))
	case engine.OutcomeSkipped:
		pterm.Warning.Printf("%s skipped: %s\n", res.EventID, res.SkipReason)
	}
}

// resultTiming is the " (12ms)" suffix, shown from -vv.
func resultTiming(res *engine.Result, verbosity int) string {
	if !logger.ShouldOutput(verbosity, logger.OutputTiming) {
		return ""
	}
	return fmt.Sprintf(" (%dms)", res.DurationMS)
}

// resultOutput is a preview of the collaborator output; -vvv shows all of it.
func resultOutput(res *engine.Result, verbosity int) string {
	if logger.ShouldOutput(verbosity, logger.OutputPayloads) {
		return res.Output
	}
	return util.Truncate(res.Output, outputPreviewLength)
}
