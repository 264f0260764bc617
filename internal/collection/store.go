package collection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scriptorium/internal/services"
)

const setsFileName = "sets.tsv"

// Set is one imported snapshot inside a collection.
type Set struct {
	ID   string
	Name string
	// Keywords carry searchable provenance terms for the set; recorded in
	// sets.tsv when present.
	Keywords []string
	Path     string
}

// Store owns the on-disk collection layout: one directory per collection,
// one subdirectory per set, and a sets.tsv metadata file mapping set ids to
// display names.
type Store struct {
	root string
}

// NewStore creates a store rooted at the collection directory.
func NewStore(collectionDir string) *Store {
	return &Store{root: collectionDir}
}

// Dir returns the directory of the named collection.
func (s *Store) Dir(collection string) string {
	return filepath.Join(s.root, collection)
}

// Add moves staged set directories into the collection. Each entry's staged
// content is expected at <stagingDir>/<set.ID>. An existing set refuses the
// add with a conflict unless overwrite is set.
func (s *Store) Add(ctx context.Context, collection string, sets []Set, stagingDir string, overwrite bool) ([]Set, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, services.Wrap(services.ErrValidation, "collection", "add", "collection name is required", nil)
	}
	dir := s.Dir(collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create collection directory: %w", err)
	}

	existing, err := s.Sets(collection)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Set, len(existing))
	for _, set := range existing {
		byID[set.ID] = set
	}

	added := make([]Set, 0, len(sets))
	for _, set := range sets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := filepath.Join(dir, set.ID)
		if _, ok := byID[set.ID]; ok || dirExists(target) {
			if !overwrite {
				return nil, services.Wrap(services.ErrConflict, "collection", "add",
					fmt.Sprintf("set %q already exists in collection %q", set.ID, collection), nil)
			}
			if err := os.RemoveAll(target); err != nil {
				return nil, fmt.Errorf("replace set %s: %w", set.ID, err)
			}
		}
		staged := filepath.Join(stagingDir, set.ID)
		if err := moveDir(staged, target); err != nil {
			return nil, fmt.Errorf("install set %s: %w", set.ID, err)
		}
		set.Path = target
		byID[set.ID] = set
		added = append(added, set)
	}

	if err := s.writeSets(dir, byID); err != nil {
		return nil, err
	}
	return added, nil
}

// Sets lists the sets recorded for a collection, ordered by id.
func (s *Store) Sets(collection string) ([]Set, error) {
	dir := s.Dir(collection)
	f, err := os.Open(filepath.Join(dir, setsFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open set metadata: %w", err)
	}
	defer f.Close()

	var sets []Set
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		id, rest, _ := strings.Cut(line, "\t")
		name, keywords, _ := strings.Cut(rest, "\t")
		set := Set{ID: id, Name: name, Path: filepath.Join(dir, id)}
		if keywords != "" {
			set.Keywords = strings.Split(keywords, ",")
		}
		sets = append(sets, set)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read set metadata: %w", err)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].ID < sets[j].ID })
	return sets, nil
}

// List returns the collection names present in the store.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read collection root: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes one set and its metadata entry.
func (s *Store) Remove(collection, setID string) error {
	dir := s.Dir(collection)
	sets, err := s.Sets(collection)
	if err != nil {
		return err
	}
	byID := make(map[string]Set, len(sets))
	found := false
	for _, set := range sets {
		if set.ID == setID {
			found = true
			continue
		}
		byID[set.ID] = set
	}
	if !found {
		return services.Wrap(services.ErrValidation, "collection", "remove",
			fmt.Sprintf("set %q not found in collection %q", setID, collection), nil)
	}
	if err := os.RemoveAll(filepath.Join(dir, setID)); err != nil {
		return fmt.Errorf("remove set %s: %w", setID, err)
	}
	return s.writeSets(dir, byID)
}

func (s *Store) writeSets(dir string, byID map[string]Set) error {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var builder strings.Builder
	for _, id := range ids {
		builder.WriteString(id)
		builder.WriteByte('\t')
		builder.WriteString(byID[id].Name)
		if len(byID[id].Keywords) > 0 {
			builder.WriteByte('\t')
			builder.WriteString(strings.Join(byID[id].Keywords, ","))
		}
		builder.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(dir, setsFileName), []byte(builder.String()), 0o644); err != nil {
		return fmt.Errorf("write set metadata: %w", err)
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// moveDir renames when possible and falls back to a copy for
// cross-filesystem staging.
func moveDir(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := moveDir(from, to); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(from, to); err != nil {
			return err
		}
	}
	return os.RemoveAll(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
