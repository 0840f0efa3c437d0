package logger

// OutputCategory defines a category of CLI output that can be enabled/disabled.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT types of information are displayed.
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults OutputCategory = iota // Command output, tables
	OutputErrors                        // Errors with hints

	// Level 1 (-v)
	OutputProgress // Loop lifecycle, executions
	OutputStartup  // Startup banner, config summary

	// Level 2 (-vv)
	OutputTiming // Execution durations
	OutputConfig // Config values loaded/applied

	// Level 3 (-vvv)
	OutputSQLQueries // Individual SQL statements
	OutputPayloads   // Full collaborator responses
)

var categoryLevels = map[OutputCategory]int{
	OutputResults:    VerbosityUser,
	OutputErrors:     VerbosityUser,
	OutputProgress:   VerbosityInfo,
	OutputStartup:    VerbosityInfo,
	OutputTiming:     VerbosityDebug,
	OutputConfig:     VerbosityDebug,
	OutputSQLQueries: VerbosityTrace,
	OutputPayloads:   VerbosityTrace,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		return verbosity >= VerbosityTrace
	}
	return verbosity >= minLevel
}
