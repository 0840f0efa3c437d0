package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
	}{
		{"JSON output mode", true},
		{"Console output mode", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, Initialize(tt.jsonOutput))
			assert.NotNil(t, Logger)
			assert.Equal(t, tt.jsonOutput, JSONOutput)
		})
	}
}

func TestInitializeWithOptionsLevel(t *testing.T) {
	require.NoError(t, InitializeWithOptions(Options{Verbosity: VerbosityUser}))
	assert.False(t, Logger.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Logger.Desugar().Core().Enabled(zapcore.WarnLevel))

	require.NoError(t, InitializeWithOptions(Options{Verbosity: VerbosityDebug}))
	assert.True(t, Logger.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestInitializeThemeFromEnv(t *testing.T) {
	defer SetTheme("everforest")
	t.Setenv("TEMPO_LOG_THEME", "gruvbox")

	require.NoError(t, InitializeWithOptions(Options{Theme: "everforest"}))
	assert.Equal(t, "gruvbox", currentTheme)
}

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(0))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(1))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(2))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(7))
	assert.Equal(t, "Trace (-vvv+)", LevelName(5))
}

func TestShouldOutput(t *testing.T) {
	assert.True(t, ShouldOutput(0, OutputResults))
	assert.False(t, ShouldOutput(0, OutputStartup))
	assert.True(t, ShouldOutput(1, OutputStartup))
	assert.False(t, ShouldOutput(2, OutputSQLQueries))
	assert.True(t, ShouldOutput(3, OutputSQLQueries))
}

func TestFieldsFromContext(t *testing.T) {
	ctx := WithComponent(WithEventID(context.Background(), "evt-9"), "engine")
	fields := FieldsFromContext(ctx)

	assert.Equal(t, []interface{}{FieldEventID, "evt-9", FieldComponent, "engine"}, fields)
	assert.Empty(t, FieldsFromContext(context.Background()))
}

func TestHelpersSafeWithNilLogger(t *testing.T) {
	saved := Logger
	defer func() { Logger = saved }()
	Logger = nil

	assert.NotPanics(t, func() {
		Infow("x")
		Warnw("x")
		Errorw("x")
		PulseInfow("x")
		PulseCloseInfow("x")
		Cleanup()
	})
}
