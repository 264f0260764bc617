package export_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scriptorium/internal/export"
	"scriptorium/internal/logging"
	"scriptorium/internal/mets"
	"scriptorium/internal/project"
	"scriptorium/internal/services"
	"scriptorium/internal/snapshot"
	"scriptorium/internal/testsupport"
	"scriptorium/internal/track"
)

type exportFixture struct {
	exporter *export.Exporter
	projects *project.Store
	child    track.Track
}

// newExportFixture seeds a sandbox whose only snapshot holds two page
// images and one unmapped auxiliary file, all described by the sandbox
// document. Folio display names are set via the names map.
func newExportFixture(t *testing.T, names map[string]string) exportFixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	projects := testsupport.SeedProject(t, cfg, "codex", "box", "p0001", "p0002")
	if len(names) > 0 {
		p, err := projects.Load("codex")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		for i, folio := range p.Folios {
			if name, ok := names[folio.ID]; ok {
				p.Folios[i].Name = name
			}
		}
		if err := projects.Save(p); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	trees := snapshot.NewManager(projects)
	tree, err := trees.Tree("codex", "box")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	populated := filepath.Join(t.TempDir(), "out")
	testsupport.WriteFile(t, filepath.Join(populated, "p0001.png"), 16)
	testsupport.WriteFile(t, filepath.Join(populated, "p0002.png"), 16)
	testsupport.WriteFile(t, filepath.Join(populated, "regions.json"), 16)
	child, err := tree.AppendPopulated(track.Root(), snapshot.Meta{Label: "recognition"}, populated)
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
				{ID: "FILE_regions_" + groupID, MimeType: "application/json", LocationPath: "root/0/data/regions.json"},
			},
		}},
		Pages: []mets.Page{
			{ID: "PHYS_p0001", FileIDs: []string{"FILE_p0001_" + groupID}},
			{ID: "PHYS_p0002", FileIDs: []string{"FILE_p0002_" + groupID}},
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

	exporter := export.NewExporter(cfg, projects, trees, logging.NewNop())
	return exportFixture{exporter: exporter, projects: projects, child: child}
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	entries := make(map[string]string, len(reader.File))
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", file.Name, err)
		}
		entries[file.Name] = string(content)
	}
	return entries
}

func TestZipSnapshotNamesEntriesAfterFolios(t *testing.T) {
	fx := newExportFixture(t, map[string]string{"p0001": "seite-a", "p0002": "seite-b"})

	var buf bytes.Buffer
	err := fx.exporter.ZipSnapshot(context.Background(), &buf, export.Request{
		ProjectID: "codex",
		SandboxID: "box",
		Track:     fx.child,
	})
	if err != nil {
		t.Fatalf("ZipSnapshot: %v", err)
	}

	entries := readArchive(t, buf.Bytes())
	for _, name := range []string{"seite-a.png", "seite-b.png", "regions.json", "filenames.tsv"} {
		if _, ok := entries[name]; !ok {
			t.Fatalf("missing archive entry %s; have %v", name, keys(entries))
		}
	}
	mapping := entries["filenames.tsv"]
	if !strings.Contains(mapping, "seite-a.png\troot/0/data/p0001.png") {
		t.Fatalf("mapping missing renamed entry:\n%s", mapping)
	}
}

func TestZipSnapshotDedupsCaseInsensitively(t *testing.T) {
	fx := newExportFixture(t, map[string]string{"p0001": "Seite", "p0002": "seite"})

	var buf bytes.Buffer
	err := fx.exporter.ZipSnapshot(context.Background(), &buf, export.Request{
		ProjectID:          "codex",
		SandboxID:          "box",
		Track:              fx.child,
		NormalizeFilenames: true,
	})
	if err != nil {
		t.Fatalf("ZipSnapshot: %v", err)
	}

	entries := readArchive(t, buf.Bytes())
	if _, ok := entries["Seite.png"]; !ok {
		t.Fatalf("missing first entry; have %v", keys(entries))
	}
	if _, ok := entries["seite_1.png"]; !ok {
		t.Fatalf("expected case-insensitive dedup suffix; have %v", keys(entries))
	}
}

func TestZipSnapshotSourceImagesUseSeparateNamespace(t *testing.T) {
	fx := newExportFixture(t, map[string]string{"p0001": "seite-a", "p0002": "seite-b"})

	var buf bytes.Buffer
	err := fx.exporter.ZipSnapshot(context.Background(), &buf, export.Request{
		ProjectID:           "codex",
		SandboxID:           "box",
		Track:               fx.child,
		NormalizeFilenames:  true,
		IncludeSourceImages: true,
	})
	if err != nil {
		t.Fatalf("ZipSnapshot: %v", err)
	}

	entries := readArchive(t, buf.Bytes())
	// Both the snapshot entry and the source image keep the undecorated
	// name; the namespaces do not share a dedup pool.
	for _, name := range []string{"seite-a.png", "source/seite-a.png", "source/seite-b.png"} {
		if _, ok := entries[name]; !ok {
			t.Fatalf("missing archive entry %s; have %v", name, keys(entries))
		}
	}
}

func TestZipSnapshotAbsentGroupIsPreconditionFailure(t *testing.T) {
	fx := newExportFixture(t, nil)

	var buf bytes.Buffer
	err := fx.exporter.ZipSnapshot(context.Background(), &buf, export.Request{
		ProjectID: "codex",
		SandboxID: "box",
		Track:     track.Root(),
	})
	if !errors.Is(err, services.ErrPreconditionFailed) {
		t.Fatalf("err = %v, want ErrPreconditionFailed", err)
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
