package am

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	if err != nil {
		t.Fatalf("LoadWithViper() failed: %v", err)
	}

	if cfg.Database.Path != "tempo.db" {
		t.Errorf("expected default database path 'tempo.db', got %q", cfg.Database.Path)
	}
	if cfg.Engine.Timezone != "America/Toronto" {
		t.Errorf("expected default timezone America/Toronto, got %q", cfg.Engine.Timezone)
	}
	if cfg.Engine.FailurePolicy != FailurePolicyRetrySameDay {
		t.Errorf("expected default failure policy %s, got %q", FailurePolicyRetrySameDay, cfg.Engine.FailurePolicy)
	}
	if cfg.Invoke.Mode != InvokeModeEcho {
		t.Errorf("expected default invoke mode echo, got %q", cfg.Invoke.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestDerivedDurations(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 2*time.Minute, cfg.Tolerance())
	assert.Equal(t, time.Minute, cfg.ErrorBackoff())
	assert.Equal(t, 5*time.Second, cfg.StopTimeout())
	assert.Equal(t, time.Duration(0), cfg.InvokeTimeout())

	cfg.Engine.ToleranceMultiplier = 0
	assert.Equal(t, 30*time.Second, cfg.Tolerance(), "zero multiplier collapses to one poll interval")
}

func TestValidate_ZeroValues(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "zero poll interval is valid (default applies)",
			config:  Config{Engine: EngineConfig{PollIntervalSeconds: 0}},
			wantErr: false,
		},
		{
			name:    "negative poll interval is invalid",
			config:  Config{Engine: EngineConfig{PollIntervalSeconds: -1}},
			wantErr: true,
		},
		{
			name:    "negative tolerance multiplier is invalid",
			config:  Config{Engine: EngineConfig{ToleranceMultiplier: -2}},
			wantErr: true,
		},
		{
			name:    "zero backoff is valid",
			config:  Config{Engine: EngineConfig{ErrorBackoffSeconds: 0}},
			wantErr: false,
		},
		{
			name:    "unknown failure policy is invalid",
			config:  Config{Engine: EngineConfig{FailurePolicy: "retry_forever"}},
			wantErr: true,
		},
		{
			name:    "suppress_day is valid",
			config:  Config{Engine: EngineConfig{FailurePolicy: FailurePolicySuppressDay}},
			wantErr: false,
		},
		{
			name:    "bad timezone is invalid",
			config:  Config{Engine: EngineConfig{Timezone: "Mars/Olympus_Mons"}},
			wantErr: true,
		},
		{
			name:    "timezone keyword is valid",
			config:  Config{Engine: EngineConfig{Timezone: "toronto"}},
			wantErr: false,
		},
		{
			name:    "local timezone is valid",
			config:  Config{Engine: EngineConfig{Timezone: "Local"}},
			wantErr: false,
		},
		{
			name:    "command mode needs commands",
			config:  Config{Invoke: InvokeConfig{Mode: InvokeModeCommand}},
			wantErr: true,
		},
		{
			name:    "http mode needs base url",
			config:  Config{Invoke: InvokeConfig{Mode: InvokeModeHTTP}},
			wantErr: true,
		},
		{
			name: "http mode with base url",
			config: Config{Invoke: InvokeConfig{
				Mode: InvokeModeHTTP,
				HTTP: InvokeHTTPConfig{BaseURL: "http://localhost:8000"},
			}},
			wantErr: false,
		},
		{
			name:    "negative rate limit is invalid",
			config:  Config{Invoke: InvokeConfig{HTTP: InvokeHTTPConfig{MaxRequestsPerMinute: -1}}},
			wantErr: true,
		},
		{
			name:    "unknown invoke mode is invalid",
			config:  Config{Invoke: InvokeConfig{Mode: "grpc"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	content := `
[database]
path = "/tmp/custom.db"

[engine]
poll_interval_seconds = 10
failure_policy = "suppress_day"

[invoke]
mode = "command"

[invoke.commands]
freya = "echo freya"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Engine.PollIntervalSeconds)
	assert.Equal(t, 4, cfg.Engine.ToleranceMultiplier, "unset keys keep defaults")
	assert.Equal(t, FailurePolicySuppressDay, cfg.Engine.FailurePolicy)
	assert.Equal(t, "echo freya", cfg.Invoke.Commands["freya"])
	assert.Equal(t, 40*time.Second, cfg.Tolerance())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestFindProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("walks upward", func(t *testing.T) {
		subDir := filepath.Join(tmpDir, "proj", "a", "b")
		require.NoError(t, os.MkdirAll(subDir, DefaultDirPermissions))
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "proj", "am.toml"), []byte(""), 0o644))

		oldWd, _ := os.Getwd()
		defer os.Chdir(oldWd)
		require.NoError(t, os.Chdir(subDir))

		result := findProjectConfig()
		assert.Equal(t, "am.toml", filepath.Base(result))
		assert.True(t, filepath.IsAbs(result))
	})
}

func TestEnvOverride(t *testing.T) {
	Reset()
	defer Reset()
	t.Setenv("TEMPO_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("TEMPO_ENGINE_POLL_INTERVAL_SECONDS", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, 7, cfg.Engine.PollIntervalSeconds)
}
