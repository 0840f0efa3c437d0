package logger

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

// palette holds the ANSI colors for one theme
type palette struct {
	fg        string
	time      string
	component string
	id        string
	number    string
	symbol    string
	warn      string
	warnBg    string
	err       string
	errBg     string
}

var themes = map[string]palette{
	"everforest": {
		fg:        "\x1b[38;5;223m", // #d3c6aa
		time:      "\x1b[38;5;107m", // #83c092
		component: "\x1b[38;5;108m", // #a7c080
		id:        "\x1b[38;5;109m", // #7fbbb3
		number:    "\x1b[38;5;108m",
		symbol:    "\x1b[38;5;108m",
		warn:      "\x1b[38;5;179m", // #dbbc7f
		warnBg:    "\x1b[48;5;58m",
		err:       "\x1b[38;5;167m", // #e67e80
		errBg:     "\x1b[48;5;52m",
	},
	"gruvbox": {
		fg:        "\x1b[38;5;223m", // #ebdbb2
		time:      "\x1b[38;5;108m", // #8ec07c
		component: "\x1b[38;5;208m", // #fe8019
		id:        "\x1b[38;5;109m", // #83a598
		number:    "\x1b[38;5;175m", // #d3869b
		symbol:    "\x1b[38;5;142m", // #b8bb26
		warn:      "\x1b[38;5;214m",
		warnBg:    "\x1b[48;5;58m",
		err:       "\x1b[38;5;167m",
		errBg:     "\x1b[48;5;88m",
	},
}

var currentTheme = "everforest"

// SetTheme configures the color scheme for console log output.
// Unknown themes are ignored.
func SetTheme(theme string) {
	if _, ok := themes[theme]; ok {
		currentTheme = theme
	}
}

func colors() palette {
	return themes[currentTheme]
}

// minimalEncoder implements a calm, compact console encoder with theme support
// Format: "13:04:35  t.coordinator  ✦  Automation executed  event_id=abc target=freya"
//
// Fields attached with Logger.With land in the embedded map encoder and are
// rendered next to the per-entry fields.
type minimalEncoder struct {
	*zapcore.MapObjectEncoder
	pool buffer.Pool
}

func newMinimalEncoder() *minimalEncoder {
	return &minimalEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		pool:             buffer.NewPool(),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range enc.Fields {
		clone.Fields[k] = v
	}
	return &minimalEncoder{MapObjectEncoder: clone, pool: enc.pool}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	c := colors()
	final := enc.pool.Get()

	final.AppendString(c.time)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	if lvl := levelString(ent.Level, c); lvl != "" {
		final.AppendString("  ")
		final.AppendString(lvl)
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(c.component)
		final.AppendString(abbreviateName(ent.LoggerName))
		final.AppendString(colorReset)
	}

	// Pull the symbol out so it leads the message
	values := fieldValues(enc.Fields, fields)
	if s, ok := values[FieldSymbol]; ok {
		final.AppendString("  ")
		final.AppendString(c.symbol + s + colorReset)
		delete(values, FieldSymbol)
	}

	final.AppendString("  ")
	final.AppendString(c.fg + ent.Message + colorReset)

	if rendered := renderFields(values, c); rendered != "" {
		final.AppendString("  ")
		final.AppendString(rendered)
	}

	final.AppendString("\n")
	return final, nil
}

func levelString(level zapcore.Level, c palette) string {
	switch level {
	case zapcore.DebugLevel, zapcore.InfoLevel:
		return ""
	case zapcore.WarnLevel:
		return colorBold + c.warnBg + c.warn + "WARN" + colorReset
	default:
		return colorBold + c.errBg + c.err + level.CapitalString() + colorReset
	}
}

// abbreviateName shortens component names: temporal.coordinator -> t.coordinator
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 && parts[0] != "" {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// fieldValues flattens context and entry fields into strings. Nothing is
// dropped; entry fields win on key collisions.
func fieldValues(context map[string]interface{}, fields []zapcore.Field) map[string]string {
	m := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(m)
	}
	out := make(map[string]string, len(context)+len(m.Fields))
	for k, v := range context {
		out[k] = fmt.Sprintf("%v", v)
	}
	for k, v := range m.Fields {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func renderFields(values map[string]string, c palette) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := values[k]
		switch k {
		case FieldEventID, FieldLogID:
			v = c.id + v + colorReset
		case FieldDurationMS, FieldCount:
			v = c.number + v + colorReset
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}
