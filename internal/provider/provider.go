package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"scriptorium/internal/services"
	"scriptorium/internal/track"
)

// Request carries everything a provider may consult while producing output.
type Request struct {
	ProjectID   string
	SandboxID   string
	ParentTrack track.Track
	// ParentDataDir is the data directory of the parent snapshot (read-only
	// from the provider's perspective).
	ParentDataDir string
	// FoliosDir holds the project's source page images.
	FoliosDir string
	// OutputDir is where the provider must write its results. The scheduler
	// attaches it to the tree only after Run returns nil.
	OutputDir string
	Params    map[string]string
}

// Provider executes one workflow step. Run must honor context cancellation;
// a cancelled run's partial output is discarded by the scheduler.
type Provider interface {
	ID() string
	Run(ctx context.Context, req Request) error
}

// Registry resolves provider ids to implementations.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider, replacing any previous registration of the id.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Resolve returns the provider for the given id.
func (r *Registry) Resolve(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "provider", "resolve",
			fmt.Sprintf("no provider registered for %q", id), nil)
	}
	return p, nil
}

// IDs returns the registered provider ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
