package engine

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	tempotest "github.com/teranos/tempo/internal/testing"
	"github.com/teranos/tempo/temporal/schedule"
)

// July 2025: the 1st is a Tuesday, the 5th a Saturday.

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type call struct {
	Target  string
	Payload string
}

// recordingInvoker counts calls and answers with fn (echo when nil).
type recordingInvoker struct {
	mu    sync.Mutex
	calls []call
	fn    func(target, payload string) (string, error)
}

func (r *recordingInvoker) Invoke(ctx context.Context, target, payload string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call{target, payload})
	fn := r.fn
	r.mu.Unlock()
	if fn != nil {
		return fn(target, payload)
	}
	return "ok: " + payload, nil
}

func (r *recordingInvoker) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recordingInvoker) SetFunc(fn func(target, payload string) (string, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fn = fn
}

type testEnv struct {
	db      *sql.DB
	engine  *Engine
	clock   *fakeClock
	invoker *recordingInvoker
	loc     *time.Location
}

func (env *testEnv) at(day, h, m, s int) time.Time {
	return time.Date(2025, time.July, day, h, m, s, 0, env.loc)
}

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	env := &testEnv{
		db:      tempotest.CreateTestDB(t),
		clock:   &fakeClock{},
		invoker: &recordingInvoker{},
		loc:     loc,
	}
	env.clock.Set(env.at(1, 7, 0, 0))

	opts := Options{
		Location:  loc,
		Tolerance: 2 * time.Minute,
		Ticker: TickerConfig{
			PollInterval: 10 * time.Millisecond,
			ErrorBackoff: 10 * time.Millisecond,
			StopTimeout:  time.Second,
		},
		Now:    env.clock.Now,
		Logger: zaptest.NewLogger(t).Sugar(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	env.engine = New(env.db, env.invoker, opts)
	t.Cleanup(env.engine.Stop)
	return env
}

func (env *testEnv) add(t *testing.T, id, clock string, days ...string) *schedule.ScheduledEvent {
	t.Helper()
	ev, err := env.engine.AddEvent(context.Background(), &schedule.ScheduledEvent{
		ID:           id,
		Name:         id,
		Target:       "saga",
		Payload:      "payload for " + id,
		ScheduleTime: clock,
		Days:         days,
		Enabled:      true,
	})
	require.NoError(t, err)
	return ev
}

func (env *testEnv) stored(t *testing.T, id string) *schedule.ScheduledEvent {
	t.Helper()
	ev, err := env.engine.store.GetEvent(context.Background(), id)
	require.NoError(t, err)
	return ev
}

func (env *testEnv) logs(t *testing.T) []schedule.ExecutionRecord {
	t.Helper()
	recs, err := env.engine.logs.QueryLogsSince(context.Background(), env.at(1, 0, 0, 0).AddDate(0, 0, -1))
	require.NoError(t, err)
	return recs
}
