package am

import (
	"github.com/teranos/tempo/am/geotime"
	"github.com/teranos/tempo/errors"
)

// Validate checks that the configuration is valid.
// Zero means disabled where that makes sense; negative is always invalid.
func (c *Config) Validate() error {
	if err := geotime.ValidateTimezone(c.Engine.Timezone); err != nil {
		return errors.Wrap(err, "engine.timezone")
	}

	if c.Engine.PollIntervalSeconds < 0 {
		return errors.Newf("engine.poll_interval_seconds must be >= 0, got %d", c.Engine.PollIntervalSeconds)
	}
	if c.Engine.ToleranceMultiplier < 0 {
		return errors.Newf("engine.tolerance_multiplier must be >= 0, got %d", c.Engine.ToleranceMultiplier)
	}
	if c.Engine.ErrorBackoffSeconds < 0 {
		return errors.Newf("engine.error_backoff_seconds must be >= 0, got %d", c.Engine.ErrorBackoffSeconds)
	}
	if c.Engine.StopTimeoutSeconds < 0 {
		return errors.Newf("engine.stop_timeout_seconds must be >= 0, got %d", c.Engine.StopTimeoutSeconds)
	}
	if c.Engine.StatusPendingLimit < 0 {
		return errors.Newf("engine.status_pending_limit must be >= 0, got %d", c.Engine.StatusPendingLimit)
	}

	switch c.Engine.FailurePolicy {
	case "", FailurePolicyRetrySameDay, FailurePolicySuppressDay:
	default:
		return errors.WithHint(
			errors.Newf("engine.failure_policy %q is not recognized", c.Engine.FailurePolicy),
			"use retry_same_day or suppress_day")
	}

	switch c.Invoke.Mode {
	case "", InvokeModeEcho:
	case InvokeModeCommand:
		if len(c.Invoke.Commands) == 0 {
			return errors.New("invoke.commands cannot be empty when invoke.mode = command")
		}
	case InvokeModeHTTP:
		if c.Invoke.HTTP.BaseURL == "" {
			return errors.New("invoke.http.base_url cannot be empty when invoke.mode = http")
		}
	default:
		return errors.Newf("invoke.mode %q is not recognized (echo, command, http)", c.Invoke.Mode)
	}

	if c.Invoke.TimeoutSeconds < 0 {
		return errors.Newf("invoke.timeout_seconds must be >= 0, got %d", c.Invoke.TimeoutSeconds)
	}
	if c.Invoke.HTTP.MaxRequestsPerMinute < 0 {
		return errors.Newf("invoke.http.max_requests_per_minute must be >= 0, got %d", c.Invoke.HTTP.MaxRequestsPerMinute)
	}

	return nil
}
