package engine

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/tempo/am"
	"github.com/teranos/tempo/am/geotime"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/invoke"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/sym"
	"github.com/teranos/tempo/temporal/schedule"
)

// DefaultPendingLimit caps the pending list in Status.
const DefaultPendingLimit = 5

// recentInStatus is the number of execution records embedded in Status.
const recentInStatus = 5

// Options configures an Engine
type Options struct {
	Location      *time.Location
	Tolerance     time.Duration
	Ticker        TickerConfig
	FailurePolicy string
	InvokeTimeout time.Duration
	PendingLimit  int
	SeedDefaults  bool
	Registrar     Registrar        // nil disables the cron trigger
	WatchPath     string           // database file to watch; "" disables the store watcher
	Now           func() time.Time // nil = time.Now
	Logger        *zap.SugaredLogger
}

// OptionsFromConfig maps the [engine] and [invoke] config sections to Options.
func OptionsFromConfig(cfg *am.Config) (Options, error) {
	loc, err := geotime.LoadLocation(cfg.Engine.Timezone)
	if err != nil {
		return Options{}, errors.Wrap(err, "engine.timezone")
	}
	opts := Options{
		Location:  loc,
		Tolerance: cfg.Tolerance(),
		Ticker: TickerConfig{
			PollInterval: cfg.PollInterval(),
			ErrorBackoff: cfg.ErrorBackoff(),
			StopTimeout:  cfg.StopTimeout(),
		},
		FailurePolicy: cfg.Engine.FailurePolicy,
		InvokeTimeout: cfg.InvokeTimeout(),
		PendingLimit:  cfg.Engine.StatusPendingLimit,
		SeedDefaults:  cfg.Engine.SeedDefaults,
	}
	if cfg.Engine.CronTrigger {
		opts.Registrar = NewCronRegistrar(loc)
	}
	if cfg.Engine.WatchStore {
		opts.WatchPath = cfg.GetDatabasePath()
	}
	return opts, nil
}

// Engine is the management surface over the scheduling components.
type Engine struct {
	store     *schedule.Store
	logs      *schedule.LogStore
	plans     *schedule.PlanStore
	registry  *Registry
	evaluator *schedule.Evaluator
	coord     *Coordinator
	ticker    *Ticker
	cron      *CronTrigger
	opts      Options
	logger    *zap.SugaredLogger

	mu          sync.Mutex
	watcher     *StoreWatcher
	cronStarted bool
}

// New wires an engine over a migrated database. Call Init before Start.
func New(db *sql.DB, invoker invoke.Invoker, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 2 * time.Minute
	}
	if opts.PendingLimit <= 0 {
		opts.PendingLimit = DefaultPendingLimit
	}
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}

	store := schedule.NewStore(db, log)
	logs := schedule.NewLogStore(db)
	registry := NewRegistry(store)
	evaluator := schedule.NewEvaluator(opts.Location, opts.Tolerance)
	coord := NewCoordinator(registry, logs, invoker, CoordinatorConfig{
		Evaluator:     evaluator,
		FailurePolicy: opts.FailurePolicy,
		InvokeTimeout: opts.InvokeTimeout,
		Now:           opts.Now,
	}, log)

	return &Engine{
		store:     store,
		logs:      logs,
		plans:     schedule.NewPlanStore(db),
		registry:  registry,
		evaluator: evaluator,
		coord:     coord,
		ticker:    NewTicker(registry, coord, evaluator, opts.Ticker, opts.Now, log),
		cron:      NewCronTrigger(opts.Registrar, registry, coord, log),
		opts:      opts,
		logger:    log,
	}
}

// Init seeds the default event set (when configured), quarantines invalid
// rows and hydrates the registry.
func (e *Engine) Init(ctx context.Context) error {
	if e.opts.SeedDefaults {
		seeded, err := e.store.SeedDefaults(ctx, e.opts.Now())
		if err != nil {
			return errors.Wrap(err, "failed to seed default automations")
		}
		if len(seeded) > 0 {
			e.logger.Infow("Seeded default automations", logger.FieldCount, len(seeded))
		}
	}
	if _, err := e.store.SanitizeInvalidDays(ctx); err != nil {
		return err
	}
	_, err := e.Reload(ctx)
	return err
}

// Location returns the engine timezone.
func (e *Engine) Location() *time.Location { return e.opts.Location }

// Reload re-hydrates the registry from the store and rebuilds cron
// registrations. Returns the number of scheduled events.
func (e *Engine) Reload(ctx context.Context) (int, error) {
	n, err := e.registry.Reload(ctx)
	if err != nil {
		return 0, err
	}
	registered := e.cron.Sync()
	e.logger.Infow("Automations loaded",
		logger.FieldCount, n,
		"cron_registered", registered)
	return n, nil
}

// Start launches the scheduler loop, the cron trigger and the store watcher.
// Starting a running engine logs a warning and returns nil.
func (e *Engine) Start(ctx context.Context) error {
	if !e.ticker.Start(ctx) {
		return nil
	}
	if e.cron != nil {
		e.cron.Start()
		e.mu.Lock()
		e.cronStarted = true
		e.mu.Unlock()
	}

	if e.opts.WatchPath != "" {
		w, err := NewStoreWatcher(e.opts.WatchPath, func(ctx context.Context) error {
			_, err := e.Reload(ctx)
			return err
		}, e.logger)
		if err != nil {
			e.logger.Warnw("Store watcher unavailable; external edits need an explicit reload",
				logger.FieldPath, e.opts.WatchPath,
				logger.FieldError, err.Error())
		} else {
			w.Start()
			e.mu.Lock()
			e.watcher = w
			e.mu.Unlock()
		}
	}
	return nil
}

// Stop halts everything Start launched. Safe to call repeatedly.
func (e *Engine) Stop() {
	e.mu.Lock()
	w, cronStarted := e.watcher, e.cronStarted
	e.watcher, e.cronStarted = nil, false
	e.mu.Unlock()

	if w != nil {
		if err := w.Stop(); err != nil {
			e.logger.Debugw("Store watcher close failed", logger.FieldError, err.Error())
		}
	}
	if cronStarted {
		e.cron.Stop()
	}
	e.ticker.Stop()
}

// Running reports whether the scheduler loop is active.
func (e *Engine) Running() bool { return e.ticker.Running() }

// Tick runs one evaluation pass synchronously.
func (e *Engine) Tick(ctx context.Context) error { return e.ticker.Tick(ctx) }

// Subscribe registers fn for execution results; call the returned func to unsubscribe.
func (e *Engine) Subscribe(fn Subscriber) func() { return e.coord.Subscribe(fn) }

// AddEvent validates and upserts ev. An empty ID gets a generated one.
// The stored event is returned.
func (e *Engine) AddEvent(ctx context.Context, ev *schedule.ScheduledEvent) (*schedule.ScheduledEvent, error) {
	ev = ev.Clone()
	if strings.TrimSpace(ev.ID) == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = e.opts.Now()
	}
	for i, tok := range ev.Days {
		ev.Days[i] = strings.ToLower(strings.TrimSpace(tok))
	}
	if err := e.store.UpsertEvent(ctx, ev); err != nil {
		return nil, err
	}
	if ev.Enabled {
		e.registry.Put(ev)
	} else {
		e.registry.Remove(ev.ID)
	}
	e.cron.Sync()

	logger.AddSymbol(e.logger, sym.AT).Infow("Automation saved",
		logger.FieldEventID, ev.ID,
		logger.FieldTarget, ev.Target,
		logger.FieldScheduleTime, ev.ScheduleTime)
	return ev, nil
}

// RemoveEvent deletes an event; its execution logs are kept.
func (e *Engine) RemoveEvent(ctx context.Context, id string) error {
	if err := e.store.DeleteEvent(ctx, id); err != nil {
		return err
	}
	e.registry.Remove(id)
	e.cron.Sync()
	return nil
}

// Toggle persists the enabled flag of id.
func (e *Engine) Toggle(ctx context.Context, id string, enabled bool) error {
	if err := e.registry.SetEnabled(ctx, id, enabled); err != nil {
		return err
	}
	e.cron.Sync()
	e.logger.Infow("Automation toggled", logger.FieldEventID, id, "enabled", enabled)
	return nil
}

// TriggerNow runs id immediately, even when disabled. An event that
// already ran today is skipped.
func (e *Engine) TriggerNow(ctx context.Context, id string) (*Result, error) {
	return e.coord.Execute(ctx, id, ExecuteOptions{Force: true, Trigger: TriggerManual})
}

// DefaultTestEvent is used by TestEvent when no event is given.
func DefaultTestEvent() *schedule.ScheduledEvent {
	return &schedule.ScheduledEvent{
		ID:           "test_automation",
		Name:         "Test Automation",
		Target:       "freya",
		Payload:      "This is a test automation. Please respond with 'Test automation executed successfully!'",
		ScheduleTime: "00:00",
		Days:         []string{schedule.DayDaily},
		Enabled:      true,
	}
}

// TestEvent invokes an unsaved event once. nil uses DefaultTestEvent.
func (e *Engine) TestEvent(ctx context.Context, ev *schedule.ScheduledEvent) (*Result, error) {
	if ev == nil {
		ev = DefaultTestEvent()
	}
	return e.coord.ExecuteAdHoc(ctx, ev)
}

// Events lists every stored event, including disabled and invalid rows.
func (e *Engine) Events(ctx context.Context) ([]schedule.StoredEvent, error) {
	return e.store.ListEvents(ctx)
}

// Sanitize repairs invalid rows and reloads the registry when anything changed.
func (e *Engine) Sanitize(ctx context.Context) (schedule.SanitizeReport, error) {
	report, err := e.store.SanitizeInvalidDays(ctx)
	if err != nil {
		return report, err
	}
	if report.Changed() {
		if _, err := e.Reload(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}

// Status summarises the scheduling state at the current instant.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	now := e.opts.Now()
	events := e.registry.All()

	st := &Status{
		Context:       NewTimeContext(now, e.opts.Location),
		Running:       e.ticker.Running(),
		EnabledEvents: len(events),
		Pending:       []EventSummary{},
	}

	due := e.evaluator.Pending(events, now)
	st.PendingCount = len(due)
	for i, ev := range due {
		if i == e.opts.PendingLimit {
			break
		}
		st.Pending = append(st.Pending, summarize(ev))
	}

	if ev, at, ok := e.evaluator.NextAmong(events, now); ok {
		in := at.Sub(now)
		if in < 0 {
			in = 0
		}
		st.Next = &NextEvent{Event: summarize(ev), At: at, In: in}
	}

	if all, err := e.store.ListEvents(ctx); err != nil {
		st.Degraded = true
		st.TotalEvents = len(events)
	} else {
		st.TotalEvents = len(all)
	}

	recent, err := e.Recent(ctx, 24)
	if err != nil {
		return nil, err
	}
	st.Degraded = st.Degraded || recent.Degraded
	for _, rec := range recent.Records {
		if schedule.SameDate(rec.ExecutedAt, now, e.opts.Location) {
			st.ExecutionsToday++
		}
	}
	if len(recent.Records) > recentInStatus {
		st.Recent = recent.Records[:recentInStatus]
	} else {
		st.Recent = recent.Records
	}
	return st, nil
}

// Recent returns executions from the last hours, newest first. When the
// store cannot be read it answers from this process's memory and sets Degraded.
func (e *Engine) Recent(ctx context.Context, hours int) (*RecentView, error) {
	if hours <= 0 {
		hours = 24
	}
	cutoff := e.opts.Now().Add(-time.Duration(hours) * time.Hour)
	view := &RecentView{Hours: hours}

	records, err := e.logs.QueryLogsSince(ctx, cutoff)
	if err == nil {
		view.Records = records
		if view.Records == nil {
			view.Records = []schedule.ExecutionRecord{}
		}
		return view, nil
	}
	if !errors.IsStorageError(err) {
		return nil, err
	}

	e.logger.Warnw("Execution history unavailable; answering from memory", logger.FieldError, err.Error())
	view.Degraded = true
	view.Records = []schedule.ExecutionRecord{}
	for _, res := range e.coord.ResultsSince(cutoff) {
		if !res.Ran() {
			continue
		}
		rec := schedule.ExecutionRecord{
			ExecutionLog: schedule.ExecutionLog{
				ID:         res.LogID,
				EventID:    res.EventID,
				ExecutedAt: res.ExecutedAt,
				Success:    res.Outcome == OutcomeSucceeded,
				Result:     res.Output,
				Error:      res.Error,
			},
			EventName:   schedule.UnknownEventName,
			EventTarget: res.Target,
		}
		if ev, ok := e.registry.Get(res.EventID); ok {
			rec.EventName = ev.Name
		}
		view.Records = append(view.Records, rec)
	}
	return view, nil
}

// Details returns one event with its next due time, last in-process result
// and newest logs.
func (e *Engine) Details(ctx context.Context, id string) (*Details, error) {
	ev, err := e.registry.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &Details{Event: ev}
	if at, ok := e.evaluator.Next(ev, e.opts.Now()); ok {
		d.Next = &at
	}
	if res, ok := e.coord.LastResult(id); ok {
		d.LastResult = &res
	}
	logs, err := e.logs.ListLogsForEvent(ctx, id, 10)
	if err != nil {
		return nil, err
	}
	d.Logs = logs
	return d, nil
}

// Today lists the enabled automations scheduled for the current day,
// ordered by time, marking the ones that already ran.
func (e *Engine) Today(ctx context.Context) ([]TodayEntry, error) {
	now := e.opts.Now()
	local := now.In(e.opts.Location)
	y, m, d := local.Date()

	var out []TodayEntry
	for _, ev := range e.registry.All() {
		if !ev.Enabled || !e.evaluator.ScheduledOn(ev, local) {
			continue
		}
		hh, mm, err := schedule.ParseClock(ev.ScheduleTime)
		if err != nil {
			continue
		}
		out = append(out, TodayEntry{
			Event: summarize(ev),
			At:    time.Date(y, m, d, hh, mm, 0, 0, e.opts.Location),
			Done:  ev.RanOn(local, e.opts.Location),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// PlanRequest is the input of CreateDailyPlan.
type PlanRequest struct {
	Date      string                  `json:"date"` // YYYY-MM-DD; "" = today
	Events    []schedule.PlannedEvent `json:"events"`
	CreatedBy string                  `json:"created_by"`
	Notes     string                  `json:"notes,omitempty"`
}

// CreateDailyPlan stores the plan and upserts each planned event as a
// ScheduledEvent running on the plan date's weekday, then reloads.
func (e *Engine) CreateDailyPlan(ctx context.Context, req PlanRequest) (*schedule.DailyPlan, error) {
	now := e.opts.Now()
	date := req.Date
	if date == "" {
		date = now.In(e.opts.Location).Format(schedule.DateLayout)
	}
	day, err := schedule.ParsePlanDate(date, e.opts.Location)
	if err != nil {
		return nil, err
	}
	creator := req.CreatedBy
	if creator == "" {
		creator = "planner"
	}

	plan := &schedule.DailyPlan{
		Date:      date,
		Events:    make([]schedule.PlannedEvent, 0, len(req.Events)),
		CreatedBy: creator,
		CreatedAt: now,
		Notes:     req.Notes,
	}
	events := make([]*schedule.ScheduledEvent, 0, len(req.Events))
	for _, p := range req.Events {
		ev := p.ToScheduledEvent(creator, day, now)
		if err := ev.Validate(); err != nil {
			return nil, err
		}
		p.ID = ev.ID
		plan.Events = append(plan.Events, p)
		events = append(events, ev)
	}

	for _, ev := range events {
		if err := e.store.UpsertEvent(ctx, ev); err != nil {
			return nil, err
		}
	}
	if err := e.plans.SaveDailyPlan(ctx, plan); err != nil {
		return nil, err
	}
	if _, err := e.Reload(ctx); err != nil {
		return nil, err
	}

	logger.AddSymbol(e.logger, sym.Plan).Infow("Daily plan created",
		logger.FieldPlanDay, date,
		logger.FieldCount, len(events),
		"created_by", creator)
	return plan, nil
}

// DailyPlan returns the stored plan for date, or nil when none exists.
func (e *Engine) DailyPlan(ctx context.Context, date string) (*schedule.DailyPlan, error) {
	if date == "" {
		date = e.opts.Now().In(e.opts.Location).Format(schedule.DateLayout)
	}
	if _, err := schedule.ParsePlanDate(date, e.opts.Location); err != nil {
		return nil, err
	}
	return e.plans.LoadDailyPlan(ctx, date)
}
