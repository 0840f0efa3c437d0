// Package am loads tempo's configuration ("am" as in "I am configured as").
//
// Sources merge in precedence order, lowest first:
//
//	defaults < /etc/tempo/am.toml < ~/.tempo/am.toml < ./am.toml (searched upward) < TEMPO_* env vars
package am

import "os"

// DefaultDirPermissions is used for ~/.tempo and any directory tempo creates
const DefaultDirPermissions os.FileMode = 0o755

// Config represents the tempo configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Invoke   InvokeConfig   `mapstructure:"invoke"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig configures the SQLite event store
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EngineConfig configures scheduling behavior
type EngineConfig struct {
	Timezone            string `mapstructure:"timezone"`              // IANA name, keyword ("toronto") or "local"
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"` // Evaluation cadence of the background loop
	ToleranceMultiplier int    `mapstructure:"tolerance_multiplier"`  // Eligibility window = multiplier x poll interval
	ErrorBackoffSeconds int    `mapstructure:"error_backoff_seconds"` // Pause after a failed evaluation pass
	StopTimeoutSeconds  int    `mapstructure:"stop_timeout_seconds"`  // Bound on waiting for the loop to exit
	FailurePolicy       string `mapstructure:"failure_policy"`        // retry_same_day | suppress_day
	CronTrigger         bool   `mapstructure:"cron_trigger"`          // Also fire events from a cron registrar
	WatchStore          bool   `mapstructure:"watch_store"`           // Reload registry when the DB file changes
	SeedDefaults        bool   `mapstructure:"seed_defaults"`         // Insert the default automation set on first run
	StatusPendingLimit  int    `mapstructure:"status_pending_limit"`  // Max pending events reported by status
}

// InvokeConfig configures how automations reach their collaborators
type InvokeConfig struct {
	Mode           string            `mapstructure:"mode"`            // echo | command | http
	Commands       map[string]string `mapstructure:"commands"`        // target -> command line (mode=command)
	HTTP           InvokeHTTPConfig  `mapstructure:"http"`            // mode=http
	TimeoutSeconds int               `mapstructure:"timeout_seconds"` // 0 = no per-call timeout
}

// InvokeHTTPConfig configures the HTTP collaborator client
type InvokeHTTPConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	MaxRequestsPerMinute int    `mapstructure:"max_requests_per_minute"` // 0 = unlimited
}

// LogConfig configures logging output
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Theme string `mapstructure:"theme"` // everforest | gruvbox
}

// Failure policies
const (
	FailurePolicyRetrySameDay = "retry_same_day"
	FailurePolicySuppressDay  = "suppress_day"
)

// Invocation modes
const (
	InvokeModeEcho    = "echo"
	InvokeModeCommand = "command"
	InvokeModeHTTP    = "http"
)
