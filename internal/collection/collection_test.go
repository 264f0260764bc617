package collection_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"scriptorium/internal/collection"
	"scriptorium/internal/logging"
	"scriptorium/internal/mets"
	"scriptorium/internal/services"
	"scriptorium/internal/snapshot"
	"scriptorium/internal/testsupport"
	"scriptorium/internal/track"
	"scriptorium/internal/workflow"
)

func TestStoreAddAndSets(t *testing.T) {
	root := t.TempDir()
	store := collection.NewStore(filepath.Join(root, "collections"))
	ctx := context.Background()

	staging := filepath.Join(root, "staging")
	testsupport.WriteFile(t, filepath.Join(staging, "set-1", "p0001.png"), 8)

	added, err := store.Add(ctx, "corpus", []collection.Set{{ID: "set-1", Name: "first pass"}}, staging, false)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(added) != 1 || added[0].Path == "" {
		t.Fatalf("unexpected added sets: %+v", added)
	}
	if _, err := os.Stat(filepath.Join(added[0].Path, "p0001.png")); err != nil {
		t.Fatalf("installed file missing: %v", err)
	}

	sets, err := store.Sets("corpus")
	if err != nil {
		t.Fatalf("Sets: %v", err)
	}
	if len(sets) != 1 || sets[0].ID != "set-1" || sets[0].Name != "first pass" {
		t.Fatalf("unexpected sets: %+v", sets)
	}
}

func TestStoreAddConflictAndOverwrite(t *testing.T) {
	root := t.TempDir()
	store := collection.NewStore(filepath.Join(root, "collections"))
	ctx := context.Background()

	stageSet := func(content string) string {
		staging := t.TempDir()
		testsupport.WriteFile(t, filepath.Join(staging, "set-1", content), 8)
		return staging
	}

	if _, err := store.Add(ctx, "corpus", []collection.Set{{ID: "set-1", Name: "v1"}}, stageSet("old.png"), false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	_, err := store.Add(ctx, "corpus", []collection.Set{{ID: "set-1", Name: "v2"}}, stageSet("new.png"), false)
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	added, err := store.Add(ctx, "corpus", []collection.Set{{ID: "set-1", Name: "v2"}}, stageSet("new.png"), true)
	if err != nil {
		t.Fatalf("Add overwrite: %v", err)
	}
	if _, err := os.Stat(filepath.Join(added[0].Path, "old.png")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("overwrite should replace previous content")
	}
	if _, err := os.Stat(filepath.Join(added[0].Path, "new.png")); err != nil {
		t.Fatalf("replacement content missing: %v", err)
	}

	sets, err := store.Sets("corpus")
	if err != nil {
		t.Fatalf("Sets: %v", err)
	}
	if len(sets) != 1 || sets[0].Name != "v2" {
		t.Fatalf("unexpected sets after overwrite: %+v", sets)
	}
}

func TestStoreRemove(t *testing.T) {
	root := t.TempDir()
	store := collection.NewStore(filepath.Join(root, "collections"))

	staging := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(staging, "set-1", "p0001.png"), 8)
	if _, err := store.Add(context.Background(), "corpus", []collection.Set{{ID: "set-1", Name: "v1"}}, staging, false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := store.Remove("corpus", "set-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	sets, err := store.Sets("corpus")
	if err != nil {
		t.Fatalf("Sets: %v", err)
	}
	if len(sets) != 0 {
		t.Fatalf("sets should be empty, got %+v", sets)
	}

	if err := store.Remove("corpus", "set-1"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

type bridgeFixture struct {
	bridge *collection.Bridge
	store  *collection.Store
	tree   *snapshot.Tree
	child  track.Track
}

// newBridgeFixture seeds a project with one appended snapshot described by
// the sandbox document. The group lists five files: two staged normally,
// one whose location is missing on disk, one mapped to a folio the project
// does not know, and one not mapped to any page.
func newBridgeFixture(t *testing.T) bridgeFixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	projects := testsupport.SeedProject(t, cfg, "codex", "box", "p0001", "p0002", "p0003")
	trees := snapshot.NewManager(projects)
	tree, err := trees.Tree("codex", "box")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}

	populated := filepath.Join(t.TempDir(), "out")
	testsupport.WriteFile(t, filepath.Join(populated, "p0001.png"), 16)
	testsupport.WriteFile(t, filepath.Join(populated, "p0003.png"), 16)
	testsupport.WriteFile(t, filepath.Join(populated, "stray.png"), 16)
	testsupport.WriteFile(t, filepath.Join(populated, "regions.json"), 16)
	child, err := tree.AppendPopulated(track.Root(), snapshot.Meta{Label: "larex pass"}, populated)
	if err != nil {
		t.Fatalf("AppendPopulated: %v", err)
	}

	groupID := mets.FileGroupID(cfg.Mets.GroupTemplate, child)
	doc := &mets.Document{
		FileGroups: []mets.FileGroup{{
			ID: groupID,
			Files: []mets.File{
				{ID: "FILE_p0001_" + groupID, MimeType: "image/png", LocationPath: "root/0/data/p0001.png"},
				{ID: "FILE_p0002_" + groupID, MimeType: "image/png", LocationPath: "root/0/data/p0002.png"},
				{ID: "FILE_p0003_" + groupID, MimeType: "image/png", LocationPath: "root/0/data/p0003.png"},
				{ID: "FILE_stray_" + groupID, MimeType: "image/png", LocationPath: "root/0/data/stray.png"},
				{ID: "FILE_regions_" + groupID, MimeType: "application/json", LocationPath: "root/0/data/regions.json"},
			},
		}},
		Pages: []mets.Page{
			{ID: "PHYS_p0001", FileIDs: []string{"FILE_p0001_" + groupID}},
			{ID: "PHYS_p0002", FileIDs: []string{"FILE_p0002_" + groupID}},
			{ID: "PHYS_p0003", FileIDs: []string{"FILE_p0003_" + groupID}},
			{ID: "PHYS_stray", FileIDs: []string{"FILE_stray_" + groupID}},
		},
	}
	docFile, err := os.Create(filepath.Join(tree.Dir(), cfg.Mets.DocumentName))
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := mets.Write(doc, docFile); err != nil {
		t.Fatalf("write document: %v", err)
	}
	if err := docFile.Close(); err != nil {
		t.Fatalf("close document: %v", err)
	}

	store := collection.NewStore(cfg.Paths.CollectionDir)
	bridge := collection.NewBridge(cfg, projects, trees, store, logging.NewNop())
	return bridgeFixture{bridge: bridge, store: store, tree: tree, child: child}
}

func TestBridgeAddSnapshot(t *testing.T) {
	fx := newBridgeFixture(t)

	set, err := fx.bridge.AddSnapshot(context.Background(), collection.AddSnapshotRequest{
		ProjectID:  "codex",
		SandboxID:  "box",
		Track:      fx.child,
		Collection: "corpus",
		Kind:       workflow.KindLarexExport,
	})
	if err != nil {
		t.Fatalf("AddSnapshot: %v", err)
	}
	if set.Name != "codex/box@0" {
		t.Fatalf("set name = %q", set.Name)
	}

	entries, err := os.ReadDir(set.Path)
	if err != nil {
		t.Fatalf("read set dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	if len(names) != 2 || names[0] != "p0001.png" || names[1] != "p0003.png" {
		t.Fatalf("expected only mapped, existing, in-project files staged; got %v", names)
	}

	sets, err := fx.store.Sets("corpus")
	if err != nil {
		t.Fatalf("Sets: %v", err)
	}
	if len(sets) != 1 || sets[0].ID != set.ID {
		t.Fatalf("unexpected sets: %+v", sets)
	}
	if len(sets[0].Keywords) != 0 {
		t.Fatalf("keywords recorded without IncludeKeywords: %v", sets[0].Keywords)
	}
}

func TestBridgeSelectedFoliosLimitStagedFiles(t *testing.T) {
	fx := newBridgeFixture(t)

	set, err := fx.bridge.AddSnapshot(context.Background(), collection.AddSnapshotRequest{
		ProjectID:  "codex",
		SandboxID:  "box",
		Track:      fx.child,
		Collection: "corpus",
		Kind:       workflow.KindLarexExport,
		Folios:     []string{"p0003"},
	})
	if err != nil {
		t.Fatalf("AddSnapshot: %v", err)
	}

	entries, err := os.ReadDir(set.Path)
	if err != nil {
		t.Fatalf("read set dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "p0003.png" {
		t.Fatalf("expected only the selected folio staged; got %v", entries)
	}
}

func TestBridgeRecordsKeywords(t *testing.T) {
	fx := newBridgeFixture(t)

	set, err := fx.bridge.AddSnapshot(context.Background(), collection.AddSnapshotRequest{
		ProjectID:       "codex",
		SandboxID:       "box",
		Track:           fx.child,
		Collection:      "corpus",
		Kind:            workflow.KindLarexExport,
		IncludeKeywords: true,
	})
	if err != nil {
		t.Fatalf("AddSnapshot: %v", err)
	}

	sets, err := fx.store.Sets("corpus")
	if err != nil {
		t.Fatalf("Sets: %v", err)
	}
	if len(sets) != 1 || sets[0].ID != set.ID {
		t.Fatalf("unexpected sets: %+v", sets)
	}
	want := []string{"codex", "box", "larex pass"}
	got := sets[0].Keywords
	if len(got) != len(want) {
		t.Fatalf("keywords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keywords = %v, want %v", got, want)
		}
	}
}

func TestBridgeRejectsNonImportableKind(t *testing.T) {
	fx := newBridgeFixture(t)

	_, err := fx.bridge.AddSnapshot(context.Background(), collection.AddSnapshotRequest{
		ProjectID:  "codex",
		SandboxID:  "box",
		Track:      fx.child,
		Collection: "corpus",
		Kind:       workflow.KindRecognition,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestBridgeAbsentGroupIsPreconditionFailure(t *testing.T) {
	fx := newBridgeFixture(t)

	// The document has no group for the root track.
	_, err := fx.bridge.AddSnapshot(context.Background(), collection.AddSnapshotRequest{
		ProjectID:  "codex",
		SandboxID:  "box",
		Track:      track.Root(),
		Collection: "corpus",
		Kind:       workflow.KindLarexExport,
	})
	if !errors.Is(err, services.ErrPreconditionFailed) {
		t.Fatalf("err = %v, want ErrPreconditionFailed", err)
	}
}
