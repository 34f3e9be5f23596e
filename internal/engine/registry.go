// internal/engine/registry.go
package engine

import (
	"context"
	"sync"
)

// Registry hands out one engine instance per owner within this process.
// Instances are created lazily and restored on first use, so a request
// arriving after a restart sees durable state immediately.
type Registry struct {
	deps Deps

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewRegistry creates an empty registry over shared dependencies.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, engines: make(map[string]*Engine)}
}

// Acquire returns the engine for ownerID, creating and restoring one on
// first use. Restore failures are surfaced through the engine's Err field,
// not returned: a degraded engine is still usable for a retry.
func (r *Registry) Acquire(ctx context.Context, ownerID string) *Engine {
	r.mu.Lock()
	e, ok := r.engines[ownerID]
	if !ok {
		e = New(ownerID, r.deps)
		r.engines[ownerID] = e
	}
	r.mu.Unlock()

	if !ok {
		if err := e.Restore(ctx); err != nil {
			r.deps.Logger.Warn("engine restore failed on first acquire",
				"owner_id", ownerID, "error", err)
		}
	}
	return e
}

// Close tears down every engine's broadcaster subscription.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.engines {
		e.Close()
	}
	r.engines = make(map[string]*Engine)
}
