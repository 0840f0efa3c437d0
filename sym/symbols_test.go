package sym

import (
	"testing"
	"unicode/utf8"
)

func TestSymbolToCommandAndCommandToSymbolAreBidirectional(t *testing.T) {
	for symbol, cmd := range SymbolToCommand {
		got, ok := CommandToSymbol[cmd]
		if !ok {
			t.Errorf("SymbolToCommand has %q → %q, but CommandToSymbol has no entry for %q", symbol, cmd, cmd)
			continue
		}
		if got != symbol {
			t.Errorf("bidirectional mismatch: SymbolToCommand[%q] = %q, but CommandToSymbol[%q] = %q", symbol, cmd, cmd, got)
		}
	}
	if len(SymbolToCommand) != len(CommandToSymbol) {
		t.Errorf("map size mismatch: %d vs %d", len(SymbolToCommand), len(CommandToSymbol))
	}
}

func TestEveryGlyphIsSingleRuneAndDescribed(t *testing.T) {
	for _, e := range registry {
		if n := utf8.RuneCountInString(e.glyph); n != 1 {
			t.Errorf("glyph %q has %d runes, want 1", e.glyph, n)
		}
		if Descriptions[e.glyph] == "" {
			t.Errorf("glyph %q has no description", e.glyph)
		}
	}
}

func TestPrefix(t *testing.T) {
	if got := Prefix("plan", "Daily plan"); got != Plan+" Daily plan" {
		t.Errorf("Prefix(plan) = %q", got)
	}
	if got := Prefix("nope", "x"); got != "x" {
		t.Errorf("Prefix(nope) = %q", got)
	}
}
