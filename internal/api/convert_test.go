package api_test

import (
	"testing"
	"time"

	"scriptorium/internal/api"
	"scriptorium/internal/scheduler"
	"scriptorium/internal/snapshot"
	"scriptorium/internal/testsupport"
	"scriptorium/internal/track"
)

func TestFromJobFormatsTimestamps(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	job := &scheduler.Job{
		ID:          "job-1",
		ProjectID:   "codex",
		SandboxID:   "box",
		ParentTrack: "0.1",
		Status:      scheduler.StatusRunning,
		CreatedAt:   started.Add(-time.Minute),
		UpdatedAt:   started,
		StartedAt:   &started,
	}

	view := api.FromJob(job)
	if view.Status != "running" {
		t.Fatalf("status = %q", view.Status)
	}
	if view.StartedAt != "2026-03-01T10:30:00Z" {
		t.Fatalf("startedAt = %q", view.StartedAt)
	}
	if view.FinishedAt != "" {
		t.Fatalf("finishedAt should be empty, got %q", view.FinishedAt)
	}
	if view.ParentTrack != "0.1" {
		t.Fatalf("parentTrack = %q", view.ParentTrack)
	}
}

func TestFromJobsOrdersNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	jobs := []*scheduler.Job{
		{ID: "a", CreatedAt: base, UpdatedAt: base},
		{ID: "b", CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)},
		{ID: "c", CreatedAt: base, UpdatedAt: base},
	}

	views := api.FromJobs(jobs)
	if len(views) != 3 {
		t.Fatalf("len(views) = %d", len(views))
	}
	if views[0].ID != "b" {
		t.Fatalf("first view = %s, want b", views[0].ID)
	}
	if views[1].ID != "c" || views[2].ID != "a" {
		t.Fatalf("tie break should order by id descending: %s, %s", views[1].ID, views[2].ID)
	}
}

func TestFromTreeNestsChildren(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	projects := testsupport.SeedProject(t, cfg, "codex", "box")
	trees := snapshot.NewManager(projects)
	tree, err := trees.Tree("codex", "box")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}

	first, err := tree.Append(track.Root(), snapshot.Meta{Label: "segmentation"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := tree.Append(first, snapshot.Meta{Label: "recognition"}); err != nil {
		t.Fatalf("Append child: %v", err)
	}
	if err := tree.SetLock(first, "larex", "in correction"); err != nil {
		t.Fatalf("SetLock: %v", err)
	}

	view, err := api.FromTree(tree, track.Root())
	if err != nil {
		t.Fatalf("FromTree: %v", err)
	}
	if view.Dotted != "" || len(view.Children) != 1 {
		t.Fatalf("unexpected root view: %+v", view)
	}
	child := view.Children[0]
	if child.Dotted != "0" || child.Label != "segmentation" {
		t.Fatalf("unexpected child view: %+v", child)
	}
	if child.Lock == nil || child.Lock.SourceID != "larex" {
		t.Fatalf("child lock missing: %+v", child.Lock)
	}
	if len(child.Children) != 1 || child.Children[0].Dotted != "0.0" {
		t.Fatalf("unexpected grandchild: %+v", child.Children)
	}
}

func TestFromHealth(t *testing.T) {
	view := api.FromHealth(scheduler.HealthSummary{Total: 3, Queued: 1, Failed: 2})
	if view.Total != 3 {
		t.Fatalf("total = %d", view.Total)
	}
	if view.ByStatus["queued"] != 1 || view.ByStatus["failed"] != 2 {
		t.Fatalf("unexpected counts: %+v", view.ByStatus)
	}
}
