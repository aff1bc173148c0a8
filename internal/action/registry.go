package action

import (
	"context"
	"fmt"
	"sync"
)

// Logger is the logging surface Registry depends on.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// snapshot is the immutable state swapped in on every RefreshCache.
// Readers always see either a fully-old or fully-new snapshot, never a
// mix — the same rebuild-then-swap idiom used by
// device.Registry.RefreshCache.
type snapshot struct {
	runtimes map[int]*Runtime
	index    *Index
}

// Registry is the Action Engine's hot-reloadable rule set: the
// persisted Actions, their live per-Action Runtime, and the
// Trigger/Result topic Index built from them.
type Registry struct {
	repo    Repository
	devices deviceLookup

	cacheMu sync.RWMutex
	current *snapshot

	logger Logger
}

// NewRegistry builds a Registry backed by repo. Call RefreshCache
// before first use.
func NewRegistry(repo Repository, devices deviceLookup) *Registry {
	return &Registry{
		repo:    repo,
		devices: devices,
		current: &snapshot{runtimes: map[int]*Runtime{}, index: &Index{Trigger: map[string][]int{}, Result: map[string][]int{}}},
	}
}

// SetLogger attaches a logger.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads every enabled Action from the repository,
// rebuilds the trigger/result Index, and swaps in a new snapshot.
// Runtimes for Actions that still exist after the reload keep their
// in-flight state (including any pending-wait); this is best effort —
// an in-flight worker holding the old Runtime pointer directly simply
// finishes against stale data, which is acceptable.
func (r *Registry) RefreshCache(ctx context.Context) error {
	actions, err := r.repo.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("action: refresh cache: %w", err)
	}

	r.cacheMu.RLock()
	previous := r.current
	r.cacheMu.RUnlock()

	runtimes := make(map[int]*Runtime, len(actions))
	for i := range actions {
		a := actions[i].DeepCopy()
		if existing, ok := previous.runtimes[a.ID]; ok {
			existing.mu.Lock()
			existing.action = a
			existing.mu.Unlock()
			runtimes[a.ID] = existing
			continue
		}
		runtimes[a.ID] = NewRuntime(a)
	}

	index, errs := BuildIndex(ctx, actions, r.devices)
	for _, e := range errs {
		if r.logger != nil {
			r.logger.Warn("action: index build error", "error", e)
		}
	}

	r.cacheMu.Lock()
	r.current = &snapshot{runtimes: runtimes, index: index}
	r.cacheMu.Unlock()

	if r.logger != nil {
		r.logger.Info("action: cache refreshed", "action_count", len(runtimes))
	}
	return nil
}

// Index returns the current trigger/result topic index.
func (r *Registry) Index() *Index {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return r.current.index
}

// Runtimes returns every currently loaded Runtime, keyed by action id.
// The returned map is the live snapshot map — callers must not mutate
// it; it's replaced wholesale on the next RefreshCache, never edited
// in place.
func (r *Registry) Runtimes() map[int]*Runtime {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return r.current.runtimes
}

// Runtime returns one Action's Runtime, or nil if it isn't loaded
// (disabled, deleted, or never existed).
func (r *Registry) Runtime(actionID int) *Runtime {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return r.current.runtimes[actionID]
}

// CreateAction validates, persists, and hot-applies a new Action.
func (r *Registry) CreateAction(ctx context.Context, a *Action) error {
	if err := Validate(ctx, a, r.devices); err != nil {
		return err
	}
	if err := r.repo.Create(ctx, a); err != nil {
		return err
	}
	return r.RefreshCache(ctx)
}

// UpdateAction validates, persists, and hot-applies changes to an
// existing Action.
func (r *Registry) UpdateAction(ctx context.Context, a *Action) error {
	if err := Validate(ctx, a, r.devices); err != nil {
		return err
	}
	if err := r.repo.Update(ctx, a); err != nil {
		return err
	}
	return r.RefreshCache(ctx)
}

// DeleteAction removes an Action and hot-applies the removal. Any
// pending-wait the deleted Action's Runtime held is discarded: the
// worker waiting on it wakes (on timeout, since nothing will ever
// signal its latch now) and finds the Action gone.
func (r *Registry) DeleteAction(ctx context.Context, id int) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}
	return r.RefreshCache(ctx)
}

// ListActions returns every persisted action (enabled or not).
func (r *Registry) ListActions(ctx context.Context) ([]Action, error) {
	return r.repo.List(ctx)
}
