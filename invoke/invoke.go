// Package invoke defines how an automation reaches its external collaborator
// and provides the implementations selected by invoke.mode.
package invoke

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/teranos/tempo/errors"
)

// Invoker sends payload to the collaborator named by target and returns its
// textual result. Implementations must honour ctx cancellation.
type Invoker interface {
	Invoke(ctx context.Context, target, payload string) (string, error)
}

// Func adapts a plain function to Invoker.
type Func func(ctx context.Context, target, payload string) (string, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, target, payload string) (string, error) {
	return f(ctx, target, payload)
}

// EchoInvoker answers every call with the payload it received.
// Used for dry runs and as the default mode.
type EchoInvoker struct{}

// Invoke returns "[target] payload".
func (EchoInvoker) Invoke(ctx context.Context, target, payload string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("[%s] %s", target, payload), nil
}

// FallbackTarget is the routing key that catches targets without their own route.
const FallbackTarget = "*"

// Router dispatches to a per-target Invoker.
type Router struct {
	mu       sync.RWMutex
	routes   map[string]Invoker
	fallback Invoker
}

// NewRouter creates a router. fallback may be nil.
func NewRouter(fallback Invoker) *Router {
	return &Router{routes: make(map[string]Invoker), fallback: fallback}
}

// Handle registers inv for target. FallbackTarget replaces the fallback.
func (r *Router) Handle(target string, inv Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if target == FallbackTarget {
		r.fallback = inv
		return
	}
	r.routes[target] = inv
}

// Targets lists the explicitly routed targets in sorted order.
func (r *Router) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	targets := make([]string, 0, len(r.routes))
	for t := range r.routes {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// Invoke forwards to the route for target, or the fallback.
func (r *Router) Invoke(ctx context.Context, target, payload string) (string, error) {
	r.mu.RLock()
	inv, ok := r.routes[target]
	if !ok {
		inv = r.fallback
	}
	r.mu.RUnlock()

	if inv == nil {
		return "", errors.WithHint(
			errors.Newf("no collaborator configured for target %q", target),
			"add it under [invoke.commands] or set a \"*\" fallback")
	}
	return inv.Invoke(ctx, target, payload)
}
