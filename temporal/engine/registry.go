// Package engine runs scheduled events: it keeps the in-memory registry,
// drives the polling loop and optional cron trigger, executes events through
// the coordinator and answers status queries.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/temporal/schedule"
)

// Registry is the process-local view of the scheduling set, hydrated from
// the store. All accessors hand out copies.
type Registry struct {
	store  *schedule.Store
	mu     sync.RWMutex
	events map[string]*schedule.ScheduledEvent
}

// NewRegistry creates an empty registry backed by store.
func NewRegistry(store *schedule.Store) *Registry {
	return &Registry{store: store, events: make(map[string]*schedule.ScheduledEvent)}
}

// Get returns a copy of the registered event.
func (r *Registry) Get(id string) (*schedule.ScheduledEvent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.events[id]
	return ev.Clone(), ok
}

// Lookup returns the registered event, or reads it from the store when it
// is not in the scheduling set (disabled rows are not hydrated).
func (r *Registry) Lookup(ctx context.Context, id string) (*schedule.ScheduledEvent, error) {
	if ev, ok := r.Get(id); ok {
		return ev, nil
	}
	return r.store.GetEvent(ctx, id)
}

// All returns copies of every registered event ordered by id.
func (r *Registry) All() []*schedule.ScheduledEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*schedule.ScheduledEvent, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered events.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// Put registers a copy of ev, replacing any entry with the same id.
func (r *Registry) Put(ev *schedule.ScheduledEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[ev.ID] = ev.Clone()
}

// Remove drops id from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, id)
}

// SetEnabled persists the flag, then mirrors it in memory. Enabling an
// event outside the registry hydrates it from the store.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	if err := r.store.SetEnabled(ctx, id, enabled); err != nil {
		return err
	}

	r.mu.Lock()
	ev, ok := r.events[id]
	if ok {
		ev.Enabled = enabled
	}
	r.mu.Unlock()
	if ok || !enabled {
		return nil
	}

	stored, err := r.store.GetEvent(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "event %s enabled but could not be loaded", id)
	}
	r.Put(stored)
	return nil
}

// MarkRun records t as the event's last run in the store and in memory.
func (r *Registry) MarkRun(ctx context.Context, id string, t time.Time) error {
	if err := r.store.UpdateLastRun(ctx, id, t); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev, ok := r.events[id]; ok {
		ran := t
		ev.LastRun = &ran
	}
	return nil
}

// Reload discards the registry and re-hydrates it from the enabled rows.
// On failure the previous contents are kept.
//
// The rows may have been read before a concurrent MarkRun landed, so an
// in-memory LastRun later than the stored one survives the swap.
func (r *Registry) Reload(ctx context.Context) (int, error) {
	events, err := r.store.LoadEnabledEvents(ctx)
	if err != nil {
		return 0, err
	}
	fresh := make(map[string]*schedule.ScheduledEvent, len(events))
	for _, ev := range events {
		fresh[ev.ID] = ev
	}

	r.mu.Lock()
	for id, ev := range fresh {
		if cur, ok := r.events[id]; ok && laterRun(cur.LastRun, ev.LastRun) {
			ran := *cur.LastRun
			ev.LastRun = &ran
		}
	}
	r.events = fresh
	r.mu.Unlock()
	return len(fresh), nil
}

// laterRun reports whether a is set and after b.
func laterRun(a, b *time.Time) bool {
	return a != nil && (b == nil || a.After(*b))
}
