package invoke

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tempo/am"
	"github.com/teranos/tempo/errors"
)

func TestEchoInvoker(t *testing.T) {
	out, err := EchoInvoker{}.Invoke(context.Background(), "saga", "hello")
	require.NoError(t, err)
	assert.Equal(t, "[saga] hello", out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = EchoInvoker{}.Invoke(ctx, "saga", "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRouter(t *testing.T) {
	calls := map[string]int{}
	named := func(name string) Invoker {
		return Func(func(ctx context.Context, target, payload string) (string, error) {
			calls[name]++
			return name + ":" + target, nil
		})
	}

	r := NewRouter(nil)
	r.Handle("saga", named("saga"))
	r.Handle("freya", named("freya"))

	out, err := r.Invoke(context.Background(), "saga", "p")
	require.NoError(t, err)
	assert.Equal(t, "saga:saga", out)
	assert.Equal(t, []string{"freya", "saga"}, r.Targets())

	_, err = r.Invoke(context.Background(), "loki", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"loki"`)
	assert.NotEmpty(t, errors.GetAllHints(err))

	r.Handle(FallbackTarget, named("fallback"))
	out, err = r.Invoke(context.Background(), "loki", "p")
	require.NoError(t, err)
	assert.Equal(t, "fallback:loki", out)
	assert.Equal(t, 1, calls["fallback"])
}

func TestFromConfig(t *testing.T) {
	t.Run("echo by default", func(t *testing.T) {
		inv, err := FromConfig(&am.Config{}, nil)
		require.NoError(t, err)
		assert.IsType(t, EchoInvoker{}, inv)
	})

	t.Run("command routes", func(t *testing.T) {
		cfg := &am.Config{Invoke: am.InvokeConfig{
			Mode:     am.InvokeModeCommand,
			Commands: map[string]string{"saga": "cat", "*": "echo fallback"},
		}}
		inv, err := FromConfig(cfg, nil)
		require.NoError(t, err)
		router, ok := inv.(*Router)
		require.True(t, ok)
		assert.Equal(t, []string{"saga"}, router.Targets())
	})

	t.Run("bad command line", func(t *testing.T) {
		cfg := &am.Config{Invoke: am.InvokeConfig{
			Mode:     am.InvokeModeCommand,
			Commands: map[string]string{"saga": `cat "unterminated`},
		}}
		_, err := FromConfig(cfg, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invoke.commands.saga")
	})

	t.Run("http", func(t *testing.T) {
		cfg := &am.Config{Invoke: am.InvokeConfig{
			Mode: am.InvokeModeHTTP,
			HTTP: am.InvokeHTTPConfig{BaseURL: "http://localhost:9000/", MaxRequestsPerMinute: 30},
		}}
		inv, err := FromConfig(cfg, nil)
		require.NoError(t, err)
		h, ok := inv.(*HTTPInvoker)
		require.True(t, ok)
		assert.Equal(t, "http://localhost:9000/invoke", h.url)
		assert.NotNil(t, h.limiter)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := FromConfig(&am.Config{Invoke: am.InvokeConfig{Mode: "carrier-pigeon"}}, nil)
		assert.True(t, errors.IsInvalidRequestError(err))
	})
}
