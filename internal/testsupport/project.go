package testsupport

import (
	"path/filepath"
	"testing"

	"scriptorium/internal/config"
	"scriptorium/internal/project"
)

// SeedProject creates a project with one active sandbox and one PNG folio
// image per provided folio id, returning the backing store.
func SeedProject(t testing.TB, cfg *config.Config, projectID, sandboxID string, folioIDs ...string) *project.Store {
	t.Helper()

	store := project.NewStore(cfg.Paths.WorkspaceDir)
	p := &project.Project{
		ID:    projectID,
		Name:  projectID,
		State: project.StateActive,
		Sandboxes: []project.Sandbox{
			{ID: sandboxID, State: project.SandboxActive},
		},
	}
	for _, id := range folioIDs {
		p.Folios = append(p.Folios, project.Folio{ID: id, Name: id})
	}
	if err := store.Save(p); err != nil {
		t.Fatalf("project.Save: %v", err)
	}
	for _, id := range folioIDs {
		WriteFile(t, filepath.Join(store.FoliosDir(projectID), id+".png"), 64)
	}
	return store
}
