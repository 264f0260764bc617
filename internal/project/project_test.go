package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"scriptorium/internal/project"
)

func sampleProject() *project.Project {
	return &project.Project{
		ID:    "codex-a",
		Name:  "Codex A",
		State: project.StateActive,
		Folios: []project.Folio{
			{ID: "0001", Name: "folio 1r"},
			{ID: "0002", Name: "folio 1v"},
		},
		Sandboxes: []project.Sandbox{
			{ID: "main", State: project.SandboxActive, GroupTemplate: "OCR-D-IMG_{}", GroupID: "PAGES"},
			{ID: "vault", State: project.SandboxSecured, GroupTemplate: "OCR-D-IMG_{}", GroupID: "PAGES"},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := project.NewStore(t.TempDir())
	p := sampleProject()
	if err := store.Save(p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load("codex-a")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Name != "Codex A" || len(loaded.Folios) != 2 || len(loaded.Sandboxes) != 2 {
		t.Fatalf("unexpected descriptor: %#v", loaded)
	}

	ids, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "codex-a" {
		t.Fatalf("List = %v", ids)
	}
}

func TestLoadMissingProject(t *testing.T) {
	store := project.NewStore(t.TempDir())
	if _, err := store.Load("ghost"); err == nil {
		t.Fatal("expected error for missing project")
	}
}

func TestCanSchedule(t *testing.T) {
	p := sampleProject()
	active, _ := p.Sandbox("main")
	secured, _ := p.Sandbox("vault")

	execute := project.Rights{Execute: true}
	special := project.Rights{Execute: true, Special: true}

	cases := []struct {
		name    string
		project *project.Project
		sandbox project.Sandbox
		rights  project.Rights
		want    bool
	}{
		{"active sandbox with execute", p, active, execute, true},
		{"secured sandbox needs special", p, secured, execute, false},
		{"secured sandbox with special", p, secured, special, true},
		{"no execute rights", p, active, project.Rights{}, false},
		{"closed sandbox", p, project.Sandbox{ID: "x", State: project.SandboxClosed}, special, false},
	}
	for _, tc := range cases {
		if got := project.CanSchedule(tc.project, tc.sandbox, tc.rights); got != tc.want {
			t.Errorf("%s: CanSchedule = %v, want %v", tc.name, got, tc.want)
		}
	}

	suspended := sampleProject()
	suspended.State = project.StateSuspended
	if project.CanSchedule(suspended, active, special) {
		t.Error("suspended project must not schedule")
	}
}

func TestFolioImagePath(t *testing.T) {
	store := project.NewStore(t.TempDir())
	p := sampleProject()
	if err := store.Save(p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	imgPath := filepath.Join(store.FoliosDir(p.ID), "0001.png")
	if err := os.WriteFile(imgPath, []byte("img"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	found, err := store.FolioImagePath(p.ID, "0001")
	if err != nil {
		t.Fatalf("FolioImagePath failed: %v", err)
	}
	if found != imgPath {
		t.Fatalf("FolioImagePath = %q, want %q", found, imgPath)
	}

	missing, err := store.FolioImagePath(p.ID, "9999")
	if err != nil || missing != "" {
		t.Fatalf("expected empty path for unknown folio, got %q err %v", missing, err)
	}
}

func TestEffectiveGroupTemplate(t *testing.T) {
	const fallback = "OCR-D-IMG_{}"
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"placeholder kept", "CUSTOM_{}", "CUSTOM_{}"},
		{"empty uses fallback", "", fallback},
		{"missing placeholder uses fallback", "CUSTOM", fallback},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sandbox := project.Sandbox{ID: "box", GroupTemplate: tc.template}
			if got := sandbox.EffectiveGroupTemplate(fallback); got != tc.want {
				t.Fatalf("EffectiveGroupTemplate = %q, want %q", got, tc.want)
			}
		})
	}
}
