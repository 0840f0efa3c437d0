// Package sym defines the glyphs tempo uses to tag log lines and CLI output.
// Each glyph names a subsystem so log output stays greppable by symbol.
package sym

// Subsystem glyphs.
const (
	AM    = "≡" // am: configuration
	AT    = "✦" // at: a scheduled moment
	SO    = "⟶" // so: a fired automation and its consequence
	DB    = "⊔" // database/storage layer
	Plan  = "▣" // daily plan
	Pulse = "꩜" // scheduler loop ticks
)

// Lifecycle glyphs.
const (
	PulseOpen  = "✿" // loop started
	PulseClose = "❀" // loop stopped
)

// entry binds a glyph to its CLI command and description.
type entry struct {
	glyph       string
	command     string
	description string
}

var registry = []entry{
	{AM, "am", "Configuration and engine settings"},
	{AT, "event", "Scheduled automation events"},
	{SO, "trigger", "Fire an automation now"},
	{Plan, "plan", "Daily plan generation"},
	{Pulse, "run", "Background scheduling loop"},
	{DB, "", "Database/storage layer"},
	{PulseOpen, "", "Loop startup"},
	{PulseClose, "", "Loop shutdown"},
}

// SymbolToCommand maps glyphs to their CLI command.
var SymbolToCommand = map[string]string{}

// CommandToSymbol maps CLI commands to their glyph.
var CommandToSymbol = map[string]string{}

// Descriptions maps every glyph to a one-line description.
var Descriptions = map[string]string{}

func init() {
	for _, e := range registry {
		Descriptions[e.glyph] = e.description
		if e.command == "" {
			continue
		}
		SymbolToCommand[e.glyph] = e.command
		CommandToSymbol[e.command] = e.glyph
	}
}

// Prefix returns "glyph text" for CLI headers, or text alone for an unknown command.
func Prefix(command, text string) string {
	if g, ok := CommandToSymbol[command]; ok {
		return g + " " + text
	}
	return text
}
