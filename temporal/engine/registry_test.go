package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReload_KeepsNewerLastRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.add(t, "morning", "08:00", "daily")
	env.clock.Set(env.at(1, 8, 0, 5))

	require.NoError(t, env.engine.Tick(ctx))
	require.Equal(t, 1, env.invoker.Count())

	// a reload that read the row before last_run was written
	_, err := env.db.Exec(`UPDATE scheduled_events SET last_run = NULL WHERE id = 'morning'`)
	require.NoError(t, err)
	n, err := env.engine.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ev, ok := env.engine.registry.Get("morning")
	require.True(t, ok)
	require.NotNil(t, ev.LastRun)
	assert.True(t, ev.LastRun.Equal(env.at(1, 8, 0, 5)))

	env.clock.Set(env.at(1, 8, 1, 0))
	require.NoError(t, env.engine.Tick(ctx))
	assert.Equal(t, 1, env.invoker.Count(), "stale reload must not allow a second run today")
}

func TestRegistryReload_TakesNewerStoredLastRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.add(t, "morning", "08:00", "daily")

	_, err := env.db.Exec(`UPDATE scheduled_events SET last_run = '2025-07-01T12:00:05Z' WHERE id = 'morning'`)
	require.NoError(t, err)
	_, err = env.engine.Reload(ctx)
	require.NoError(t, err)

	ev, ok := env.engine.registry.Get("morning")
	require.True(t, ok)
	require.NotNil(t, ev.LastRun)
	assert.True(t, ev.LastRun.Equal(env.at(1, 8, 0, 5)))
}
