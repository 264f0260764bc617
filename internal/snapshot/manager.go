package snapshot

import (
	"sync"

	"scriptorium/internal/project"
)

// Manager hands out one Tree per (project, sandbox), opening trees lazily
// and caching them. Trees guard their own state; the manager only guards the
// cache.
type Manager struct {
	store *project.Store

	mu    sync.Mutex
	trees map[string]*Tree
}

// NewManager creates a manager rooted at the project store's workspace.
func NewManager(store *project.Store) *Manager {
	return &Manager{store: store, trees: make(map[string]*Tree)}
}

// Tree returns the snapshot tree of the given sandbox, initializing its
// on-disk layout on first access.
func (m *Manager) Tree(projectID, sandboxID string) (*Tree, error) {
	key := project.NormalizeID(projectID) + "/" + project.NormalizeID(sandboxID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if tree, ok := m.trees[key]; ok {
		return tree, nil
	}
	tree, err := Open(m.store.SandboxDir(projectID, sandboxID))
	if err != nil {
		return nil, err
	}
	m.trees[key] = tree
	return tree, nil
}

// Forget drops a cached tree, forcing a reload on next access. Used after
// out-of-band changes to a sandbox directory.
func (m *Manager) Forget(projectID, sandboxID string) {
	key := project.NormalizeID(projectID) + "/" + project.NormalizeID(sandboxID)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trees, key)
}
