package engine

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/temporal/schedule"
)

// Registrar is a cron facility the secondary trigger registers events with.
// dayPattern is a comma-separated list of day tokens, timeOfDay is "HH:MM".
type Registrar interface {
	Register(dayPattern, timeOfDay string, fn func()) error
	Start()
	Stop()
	Clear()
}

var cronParser = cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow)

var cronWeekdays = map[string]int{
	schedule.DaySunday:    0,
	schedule.DayMonday:    1,
	schedule.DayTuesday:   2,
	schedule.DayWednesday: 3,
	schedule.DayThursday:  4,
	schedule.DayFriday:    5,
	schedule.DaySaturday:  6,
}

// CronSpec converts day tokens and an HH:MM time into a five-field cron
// expression, e.g. (["weekday"], "08:30") -> "30 8 * * 1,2,3,4,5".
func CronSpec(days []string, timeOfDay string) (string, error) {
	h, m, err := schedule.ParseClock(timeOfDay)
	if err != nil {
		return "", err
	}

	set := make(map[int]bool)
	for _, raw := range days {
		tok := strings.ToLower(strings.TrimSpace(raw))
		switch tok {
		case schedule.DayDaily:
			return strconv.Itoa(m) + " " + strconv.Itoa(h) + " * * *", nil
		case schedule.DayWeekday:
			for d := 1; d <= 5; d++ {
				set[d] = true
			}
		case schedule.DayWeekend:
			set[0], set[6] = true, true
		default:
			d, ok := cronWeekdays[tok]
			if !ok {
				return "", errors.Newf("unknown day token %q", raw)
			}
			set[d] = true
		}
	}
	if len(set) == 0 {
		return "", errors.New("no day tokens")
	}

	dow := make([]int, 0, len(set))
	for d := range set {
		dow = append(dow, d)
	}
	sort.Ints(dow)
	parts := make([]string, len(dow))
	for i, d := range dow {
		parts[i] = strconv.Itoa(d)
	}
	return strconv.Itoa(m) + " " + strconv.Itoa(h) + " * * " + strings.Join(parts, ","), nil
}

// CronRegistrar is the robfig/cron implementation of Registrar.
type CronRegistrar struct {
	mu      sync.Mutex
	cron    *cronlib.Cron
	entries []cronlib.EntryID
}

// NewCronRegistrar creates a registrar firing in loc.
func NewCronRegistrar(loc *time.Location) *CronRegistrar {
	return &CronRegistrar{cron: cronlib.New(cronlib.WithLocation(loc), cronlib.WithParser(cronParser))}
}

// Register schedules fn on the days in dayPattern at timeOfDay.
func (r *CronRegistrar) Register(dayPattern, timeOfDay string, fn func()) error {
	spec, err := CronSpec(strings.Split(dayPattern, ","), timeOfDay)
	if err != nil {
		return err
	}
	id, err := r.cron.AddFunc(spec, fn)
	if err != nil {
		return errors.Wrapf(err, "invalid cron spec %q", spec)
	}
	r.mu.Lock()
	r.entries = append(r.entries, id)
	r.mu.Unlock()
	return nil
}

// Start begins firing registered functions.
func (r *CronRegistrar) Start() { r.cron.Start() }

// Stop halts the scheduler and waits for running jobs.
func (r *CronRegistrar) Stop() { <-r.cron.Stop().Done() }

// Clear removes every registration.
func (r *CronRegistrar) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.entries {
		r.cron.Remove(id)
	}
	r.entries = nil
}

// Len returns the number of active registrations.
func (r *CronRegistrar) Len() int {
	return len(r.cron.Entries())
}

// CronTrigger mirrors the registry into a Registrar so events also fire at
// their exact minute. Callbacks go through the coordinator's due-checked
// path; whichever of loop and cron arrives second is a no-op.
type CronTrigger struct {
	registrar   Registrar
	registry    *Registry
	coordinator *Coordinator
	logger      *zap.SugaredLogger
}

// NewCronTrigger creates a trigger. A nil registrar yields nil.
func NewCronTrigger(registrar Registrar, registry *Registry, coordinator *Coordinator, log *zap.SugaredLogger) *CronTrigger {
	if registrar == nil {
		return nil
	}
	if log == nil {
		log = logger.Logger
	}
	return &CronTrigger{registrar: registrar, registry: registry, coordinator: coordinator, logger: log}
}

// Sync clears the registrar and registers every enabled event.
// Returns the number registered.
func (c *CronTrigger) Sync() int {
	if c == nil {
		return 0
	}
	c.registrar.Clear()

	n := 0
	for _, ev := range c.registry.All() {
		if !ev.Enabled {
			continue
		}
		id := ev.ID
		err := c.registrar.Register(strings.Join(ev.Days, ","), ev.ScheduleTime, func() {
			c.fire(id)
		})
		if err != nil {
			c.logger.Warnw("Failed to register automation with cron",
				logger.FieldEventID, id,
				logger.FieldError, err.Error())
			continue
		}
		n++
	}
	c.logger.Debugw("Cron registrations rebuilt", logger.FieldCount, n)
	return n
}

func (c *CronTrigger) fire(id string) {
	_, err := c.coordinator.Execute(context.Background(), id, ExecuteOptions{DueCheck: true, Trigger: TriggerCron})
	if err != nil && !errors.IsInvocationError(err) {
		c.logger.Warnw("Cron-triggered automation failed",
			logger.FieldEventID, id,
			logger.FieldError, err.Error())
	}
}

// Start starts the registrar.
func (c *CronTrigger) Start() {
	if c != nil {
		c.registrar.Start()
	}
}

// Stop stops the registrar.
func (c *CronTrigger) Stop() {
	if c != nil {
		c.registrar.Stop()
	}
}
