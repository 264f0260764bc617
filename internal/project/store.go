package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"scriptorium/internal/services"
)

const descriptorName = "project.toml"

// Store persists project descriptors under the workspace root.
type Store struct {
	root string
}

// NewStore creates a store rooted at the workspace directory.
func NewStore(workspaceDir string) *Store {
	return &Store{root: workspaceDir}
}

// Root returns the workspace directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory of one project.
func (s *Store) Dir(projectID string) string {
	return filepath.Join(s.root, NormalizeID(projectID))
}

// SandboxDir returns the directory owning one sandbox's snapshot tree.
func (s *Store) SandboxDir(projectID, sandboxID string) string {
	return filepath.Join(s.Dir(projectID), "sandboxes", NormalizeID(sandboxID))
}

// FoliosDir returns the directory holding a project's source page images.
func (s *Store) FoliosDir(projectID string) string {
	return filepath.Join(s.Dir(projectID), "folios")
}

// Load reads a project descriptor from disk.
func (s *Store) Load(projectID string) (*Project, error) {
	path := filepath.Join(s.Dir(projectID), descriptorName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrValidation, "project", "load", fmt.Sprintf("project %q does not exist", projectID), nil)
		}
		return nil, fmt.Errorf("read project descriptor: %w", err)
	}
	var p Project
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse project descriptor: %w", err)
	}
	if p.State == "" {
		p.State = StateActive
	}
	return &p, nil
}

// Save writes a project descriptor, creating the project layout on first use.
func (s *Store) Save(p *Project) error {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return errors.New("project requires an id")
	}
	dir := s.Dir(p.ID)
	for _, sub := range []string{dir, filepath.Join(dir, "folios"), filepath.Join(dir, "sandboxes")} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("create project layout: %w", err)
		}
	}
	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal project descriptor: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, descriptorName), data, 0o644); err != nil {
		return fmt.Errorf("write project descriptor: %w", err)
	}
	return nil
}

// List returns the ids of all projects in the workspace.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, entry.Name(), descriptorName)); err == nil {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// FolioImagePath locates the source image for a folio by id, matching any
// extension. Returns the empty string when no image exists.
func (s *Store) FolioImagePath(projectID, folioID string) (string, error) {
	dir := s.FoliosDir(projectID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read folios directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) == folioID {
			return filepath.Join(dir, name), nil
		}
	}
	return "", nil
}
