package am

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "tempo.db")

	v.SetDefault("engine.timezone", "America/Toronto")
	v.SetDefault("engine.poll_interval_seconds", 30)
	v.SetDefault("engine.tolerance_multiplier", 4) // 2 minutes at the default poll interval
	v.SetDefault("engine.error_backoff_seconds", 60)
	v.SetDefault("engine.stop_timeout_seconds", 5)
	v.SetDefault("engine.failure_policy", FailurePolicyRetrySameDay)
	v.SetDefault("engine.cron_trigger", false)
	v.SetDefault("engine.watch_store", true)
	v.SetDefault("engine.seed_defaults", true)
	v.SetDefault("engine.status_pending_limit", 5)

	v.SetDefault("invoke.mode", InvokeModeEcho)
	v.SetDefault("invoke.timeout_seconds", 0)
	v.SetDefault("invoke.http.max_requests_per_minute", 30)

	v.SetDefault("log.json", false)
	v.SetDefault("log.theme", "everforest")
}

// BindSensitiveEnvVars explicitly binds values commonly set per-host
func BindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("database.path", "TEMPO_DATABASE_PATH")
	_ = v.BindEnv("engine.timezone", "TEMPO_TIMEZONE")
	_ = v.BindEnv("invoke.http.base_url", "TEMPO_INVOKE_HTTP_BASE_URL")
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "tempo.db"
	}
	return c.Database.Path
}

// PollInterval returns the loop's evaluation cadence
func (c *Config) PollInterval() time.Duration {
	if c.Engine.PollIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Engine.PollIntervalSeconds) * time.Second
}

// Tolerance returns the eligibility window after a scheduled time.
// Zero multiplier is treated as 1 so an event is never undue forever.
func (c *Config) Tolerance() time.Duration {
	m := c.Engine.ToleranceMultiplier
	if m <= 0 {
		m = 1
	}
	return time.Duration(m) * c.PollInterval()
}

// ErrorBackoff returns the pause after a failed evaluation pass
func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Engine.ErrorBackoffSeconds) * time.Second
}

// StopTimeout returns how long Stop waits for the loop to exit
func (c *Config) StopTimeout() time.Duration {
	if c.Engine.StopTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Engine.StopTimeoutSeconds) * time.Second
}

// InvokeTimeout returns the per-call collaborator timeout (0 = none)
func (c *Config) InvokeTimeout() time.Duration {
	return time.Duration(c.Invoke.TimeoutSeconds) * time.Second
}

// GetLogTheme returns the log theme (default: everforest)
func (c *Config) GetLogTheme() string {
	if c.Log.Theme == "" {
		return "everforest"
	}
	return c.Log.Theme
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Engine: {Timezone: %s, Poll: %ds, Policy: %s}, Invoke: {Mode: %s}}",
		c.Database.Path, c.Engine.Timezone, c.Engine.PollIntervalSeconds, c.Engine.FailurePolicy, c.Invoke.Mode)
}
