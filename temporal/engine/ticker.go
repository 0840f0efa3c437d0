package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/sym"
	"github.com/teranos/tempo/temporal/schedule"
)

// TickerConfig contains configuration for the scheduler loop
type TickerConfig struct {
	PollInterval time.Duration // pause between evaluation passes (default 30s)
	ErrorBackoff time.Duration // pause after a failed pass; 0 = just the poll interval
	StopTimeout  time.Duration // bound on Stop waiting for the goroutine (default 5s)
}

// DefaultTickerConfig returns the production cadence
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		PollInterval: 30 * time.Second,
		ErrorBackoff: 60 * time.Second,
		StopTimeout:  5 * time.Second,
	}
}

// Ticker is the scheduler loop: every poll interval it hands each due
// event to the coordinator, one at a time.
type Ticker struct {
	registry    *Registry
	coordinator *Coordinator
	evaluator   *schedule.Evaluator
	cfg         TickerConfig
	now         func() time.Time
	base        *zap.SugaredLogger
	logger      *zap.SugaredLogger

	mu              sync.Mutex
	cancel          context.CancelFunc
	done            chan struct{}
	lastTickAt      time.Time
	ticksSinceStart int64
	lastTickErr     error
}

// NewTicker creates a stopped ticker. now nil means time.Now.
func NewTicker(registry *Registry, coordinator *Coordinator, evaluator *schedule.Evaluator, cfg TickerConfig, now func() time.Time, log *zap.SugaredLogger) *Ticker {
	def := DefaultTickerConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = cfg.PollInterval
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = def.StopTimeout
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Logger
	}
	return &Ticker{
		registry:    registry,
		coordinator: coordinator,
		evaluator:   evaluator,
		cfg:         cfg,
		now:         now,
		base:        log,
		logger:      logger.AddSymbol(log, sym.Pulse),
	}
}

// Start launches the loop goroutine. It returns false, with a warning,
// when the loop is already running.
func (t *Ticker) Start(parent context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done != nil {
		t.logger.Warnw("Scheduler loop already running")
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.ticksSinceStart = 0
	go t.run(ctx, t.done)

	logger.AddSymbol(t.base, sym.PulseOpen).Infow("Scheduler loop started",
		"interval", t.cfg.PollInterval)
	return true
}

// Stop signals the loop and waits for it up to the stop timeout. An
// execution in progress runs to completion, including its log row.
// Stopping a stopped ticker is a no-op.
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if done == nil {
		return
	}
	cancel()

	select {
	case <-done:
		logger.AddSymbol(t.base, sym.PulseClose).Infow("Scheduler loop stopped")
	case <-time.After(t.cfg.StopTimeout):
		t.logger.Warnw("Scheduler loop did not stop in time; goroutine may leak",
			"timeout", t.cfg.StopTimeout)
	}
}

// Running reports whether the loop goroutine is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done != nil
}

func (t *Ticker) run(ctx context.Context, done chan struct{}) {
	defer func() {
		// parent context ended without Stop
		t.mu.Lock()
		if t.done == done {
			t.cancel()
			t.cancel, t.done = nil, nil
		}
		t.mu.Unlock()
		close(done)
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		wait := t.cfg.PollInterval
		if err := t.safeTick(ctx); err != nil && ctx.Err() == nil {
			t.logger.Errorw("Scheduler pass failed; backing off",
				logger.FieldError, err.Error(),
				"backoff", t.cfg.ErrorBackoff)
			wait = t.cfg.ErrorBackoff
		}

		if !sleep(ctx, wait) {
			return
		}
	}
}

// safeTick runs one pass and turns a panic into an error.
func (t *Ticker) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("scheduler pass panicked: %v", r)
		}
		t.mu.Lock()
		t.lastTickErr = err
		t.mu.Unlock()
	}()
	return t.Tick(ctx)
}

// Tick runs one evaluation pass: every due event is executed in registry
// order. Per-event failures are logged and do not stop the pass.
func (t *Ticker) Tick(ctx context.Context) error {
	now := t.now()

	t.mu.Lock()
	t.lastTickAt = now
	t.ticksSinceStart++
	tick := t.ticksSinceStart
	t.mu.Unlock()

	due := t.evaluator.Pending(t.registry.All(), now)
	if len(due) == 0 {
		t.logNext(now)
		return nil
	}

	t.logger.Debugw("Due automations found", logger.FieldCount, len(due), "tick", tick)

	// Stop is honoured between events; an execution already started
	// finishes its invoke and its log write.
	execCtx := context.WithoutCancel(ctx)

	var storageErr error
	for _, ev := range due {
		if err := ctx.Err(); err != nil {
			return nil
		}
		res, err := t.coordinator.Execute(execCtx, ev.ID, ExecuteOptions{DueCheck: true, Trigger: TriggerLoop})
		switch {
		case err == nil:
		case errors.IsInvocationError(err):
			// already logged and recorded by the coordinator
		case db.IsDatabaseClosed(err):
			// shutting down
			return nil
		case errors.IsStorageError(err):
			storageErr = err
		default:
			t.logger.Warnw("Failed to execute automation",
				logger.FieldEventID, ev.ID,
				logger.FieldError, err.Error())
		}
		if res != nil && res.Outcome == OutcomeSkipped {
			t.logger.Debugw("Due automation skipped at execution",
				logger.FieldEventID, ev.ID,
				"reason", res.SkipReason)
		}
	}
	return storageErr
}

// logNext reports the upcoming automation at debug level.
func (t *Ticker) logNext(now time.Time) {
	ev, at, ok := t.evaluator.NextAmong(t.registry.All(), now)
	if !ok {
		t.logger.Debugw("No scheduled automations")
		return
	}
	t.logger.Debugw(fmt.Sprintf("Next automation '%s' in %s", ev.Name, at.Sub(now).Round(time.Second)),
		logger.FieldEventID, ev.ID,
		logger.FieldScheduleTime, ev.ScheduleTime)
}

// Stats returns ticker statistics
func (t *Ticker) Stats() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := map[string]interface{}{
		"running":           t.done != nil,
		"last_tick_at":      t.lastTickAt,
		"ticks_since_start": t.ticksSinceStart,
		"interval":          t.cfg.PollInterval.String(),
	}
	if t.lastTickErr != nil {
		stats["last_error"] = t.lastTickErr.Error()
	}
	return stats
}

// sleep waits d in one-second steps so a stop request is honoured promptly.
// Returns false when ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	const step = time.Second
	for d > 0 {
		wait := step
		if d < step {
			wait = d
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		d -= wait
	}
	return ctx.Err() == nil
}
