package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tempo/am"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/internal/util"
	"github.com/teranos/tempo/invoke"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/sym"
	"github.com/teranos/tempo/temporal/schedule"
)

// MaxResultLength bounds collaborator output kept in logs and results.
const MaxResultLength = 10000

// maxRecentResults bounds the in-memory history used when the store is unreadable.
const maxRecentResults = 200

// Trigger names the path that asked for an execution.
type Trigger string

const (
	TriggerLoop   Trigger = "loop"
	TriggerCron   Trigger = "cron"
	TriggerManual Trigger = "manual"
	TriggerTest   Trigger = "test"
)

// Outcome of one Execute call
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// ExecuteOptions controls the checks Execute applies before invoking.
type ExecuteOptions struct {
	// Force runs a disabled event for this call only. The stored flag is untouched.
	Force bool
	// DueCheck re-evaluates eligibility under the lock (loop and cron paths).
	DueCheck bool
	Trigger  Trigger
}

// Result describes what happened to one execution request.
type Result struct {
	EventID    string    `json:"event_id"`
	Target     string    `json:"target"`
	Trigger    Trigger   `json:"trigger"`
	Outcome    Outcome   `json:"outcome"`
	SkipReason string    `json:"skip_reason,omitempty"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	LogID      int64     `json:"log_id,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Ran reports whether the collaborator was invoked.
func (r *Result) Ran() bool {
	return r.Outcome == OutcomeSucceeded || r.Outcome == OutcomeFailed
}

// InvocationError wraps a collaborator failure for one event.
type InvocationError struct {
	EventID string
	Target  string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s for event %s: %v", e.Target, e.EventID, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, errors.ErrInvocation) hold.
func (e *InvocationError) Is(target error) bool {
	return target == errors.ErrInvocation
}

// Subscriber is notified after every execution that reached the collaborator.
type Subscriber func(Result)

// CoordinatorConfig configures a Coordinator
type CoordinatorConfig struct {
	Evaluator     *schedule.Evaluator
	FailurePolicy string           // am.FailurePolicy*; empty = retry_same_day
	InvokeTimeout time.Duration    // 0 = none
	Now           func() time.Time // nil = time.Now
}

// Coordinator executes events one at a time. Its mutex is shared by the
// loop, cron callbacks and manual triggers, so the "already ran today"
// check and the LastRun write are atomic with respect to each other.
type Coordinator struct {
	registry *Registry
	logs     *schedule.LogStore
	invoker  invoke.Invoker
	cfg      CoordinatorConfig
	logger   *zap.SugaredLogger

	mu sync.Mutex

	subMu   sync.RWMutex
	subs    map[int]Subscriber
	nextSub int

	resMu   sync.RWMutex
	last    map[string]Result
	history []Result
}

// NewCoordinator creates a coordinator.
func NewCoordinator(registry *Registry, logs *schedule.LogStore, invoker invoke.Invoker, cfg CoordinatorConfig, log *zap.SugaredLogger) *Coordinator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = am.FailurePolicyRetrySameDay
	}
	if log == nil {
		log = logger.Logger
	}
	return &Coordinator{
		registry: registry,
		logs:     logs,
		invoker:  invoker,
		cfg:      cfg,
		logger:   logger.AddSymbol(log, sym.SO),
		subs:     make(map[int]Subscriber),
		last:     make(map[string]Result),
	}
}

// Execute runs event id once if the guards allow it.
//
// A skipped execution returns a Result with OutcomeSkipped and a nil error.
// A collaborator failure returns the Result together with an *InvocationError.
// Unknown ids return an error matching errors.ErrNotFound.
func (c *Coordinator) Execute(ctx context.Context, id string, opts ExecuteOptions) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ev *schedule.ScheduledEvent
	if opts.Force {
		found, err := c.registry.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		ev = found
	} else {
		found, ok := c.registry.Get(id)
		if !ok {
			return nil, errors.NewNotFoundError("event %s is not scheduled", id)
		}
		ev = found
	}

	now := c.cfg.Now()
	res := &Result{EventID: ev.ID, Target: ev.Target, Trigger: opts.Trigger, ExecutedAt: now}

	switch {
	case c.cfg.Evaluator.Suppressed(ev, now):
		return c.skip(res, "already ran today"), nil
	case !opts.Force && !ev.Enabled:
		return c.skip(res, "disabled"), nil
	case opts.DueCheck && !opts.Force && !c.cfg.Evaluator.IsDue(ev, now):
		return c.skip(res, "not due"), nil
	}

	start := time.Now()
	output, invokeErr := c.invoke(ctx, ev)
	res.DurationMS = time.Since(start).Milliseconds()

	var storeErr error
	if invokeErr == nil {
		res.Outcome = OutcomeSucceeded
		res.Output = util.Truncate(output, MaxResultLength)
		storeErr = c.persist(ctx, ev, res, now, true, res.Output)
	} else {
		res.Outcome = OutcomeFailed
		res.Error = invokeErr.Error()
		storeErr = c.persist(ctx, ev, res, now, c.cfg.FailurePolicy == am.FailurePolicySuppressDay, res.Error)
	}

	c.remember(*res)
	c.notify(*res)

	fields := []interface{}{
		logger.FieldEventID, ev.ID,
		logger.FieldTarget, ev.Target,
		logger.FieldTrigger, string(opts.Trigger),
		logger.FieldDurationMS, res.DurationMS,
	}
	if invokeErr != nil {
		c.logger.Warnw("Automation failed", append(fields,
			logger.FieldError, res.Error,
			"collaborator_unavailable", errors.IsServiceUnavailableError(invokeErr))...)
	} else {
		c.logger.Infow("Automation executed", fields...)
	}

	if storeErr != nil {
		return res, storeErr
	}
	if invokeErr != nil {
		return res, invokeErr
	}
	return res, nil
}

// ExecuteAdHoc invokes ev without storing a log row or touching LastRun.
// The result is kept in memory and sent to subscribers.
func (c *Coordinator) ExecuteAdHoc(ctx context.Context, ev *schedule.ScheduledEvent) (*Result, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.Now()
	res := &Result{EventID: ev.ID, Target: ev.Target, Trigger: TriggerTest, ExecutedAt: now}
	start := time.Now()
	output, err := c.invoke(ctx, ev)
	res.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
	} else {
		res.Outcome = OutcomeSucceeded
		res.Output = util.Truncate(output, MaxResultLength)
	}
	c.remember(*res)
	c.notify(*res)
	return res, err
}

// invoke calls the collaborator, converting panics into errors.
func (c *Coordinator) invoke(ctx context.Context, ev *schedule.ScheduledEvent) (output string, err error) {
	if c.cfg.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.InvokeTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("collaborator panicked: %v", r)
		}
		if err != nil {
			err = &InvocationError{EventID: ev.ID, Target: ev.Target, Err: err}
		}
	}()
	return c.invoker.Invoke(ctx, ev.Target, ev.Payload)
}

// persist appends the log row and, when markRun is set, advances LastRun.
// Both writes are attempted even if the first fails.
func (c *Coordinator) persist(ctx context.Context, ev *schedule.ScheduledEvent, res *Result, now time.Time, markRun bool, text string) error {
	var firstErr error
	logRow, err := c.logs.AppendLog(ctx, ev.ID, now, res.Outcome == OutcomeSucceeded, text)
	if err != nil {
		firstErr = err
		c.logger.Errorw("Failed to record execution", logger.FieldEventID, ev.ID, logger.FieldError, err)
	} else {
		res.LogID = logRow.ID
	}

	if markRun {
		if err := c.registry.MarkRun(ctx, ev.ID, now); err != nil {
			c.logger.Errorw("Failed to update last run", logger.FieldEventID, ev.ID, logger.FieldError, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *Coordinator) skip(res *Result, reason string) *Result {
	res.Outcome = OutcomeSkipped
	res.SkipReason = reason
	c.logger.Debugw("Automation skipped",
		logger.FieldEventID, res.EventID,
		logger.FieldTrigger, string(res.Trigger),
		"reason", reason)
	return res
}

// Subscribe registers fn and returns a function that removes it.
func (c *Coordinator) Subscribe(fn Subscriber) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Coordinator) notify(res Result) {
	c.subMu.RLock()
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, c.subs[id])
	}
	c.subMu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Errorw("Subscriber panicked",
						logger.FieldEventID, res.EventID,
						logger.FieldError, fmt.Sprint(r))
				}
			}()
			fn(res)
		}()
	}
}

func (c *Coordinator) remember(res Result) {
	c.resMu.Lock()
	defer c.resMu.Unlock()
	c.last[res.EventID] = res
	c.history = append(c.history, res)
	if len(c.history) > maxRecentResults {
		c.history = c.history[len(c.history)-maxRecentResults:]
	}
}

// LastResult returns the most recent result of id seen by this process.
func (c *Coordinator) LastResult(id string) (Result, bool) {
	c.resMu.RLock()
	defer c.resMu.RUnlock()
	res, ok := c.last[id]
	return res, ok
}

// ResultsSince returns remembered results executed at or after cutoff, newest first.
func (c *Coordinator) ResultsSince(cutoff time.Time) []Result {
	c.resMu.RLock()
	defer c.resMu.RUnlock()
	var out []Result
	for i := len(c.history) - 1; i >= 0; i-- {
		if !c.history[i].ExecutedAt.Before(cutoff) {
			out = append(out, c.history[i])
		}
	}
	return out
}
