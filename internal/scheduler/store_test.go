package scheduler_test

import (
	"context"
	"testing"
	"time"

	"scriptorium/internal/scheduler"
	"scriptorium/internal/testsupport"
)

const testDefinition = `{"id":"wf","steps":[{"provider":"copyimages","kind":"segmentation"}]}`

func TestEnqueueAndClaimOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "codex", "box", "", testDefinition)
	second := testsupport.NewJob(t, store, "codex", "box", "0", testDefinition)

	claimed, err := store.ClaimNextQueued(ctx)
	if err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected first job claimed, got %+v", claimed)
	}
	if claimed.Status != scheduler.StatusRunning {
		t.Fatalf("claimed status = %s, want running", claimed.Status)
	}
	if claimed.StartedAt == nil || claimed.LastHeartbeat == nil {
		t.Fatal("claim should record started_at and heartbeat")
	}

	claimed, err = store.ClaimNextQueued(ctx)
	if err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}
	if claimed == nil || claimed.ID != second.ID {
		t.Fatalf("expected second job claimed, got %+v", claimed)
	}

	claimed, err = store.ClaimNextQueued(ctx)
	if err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected empty queue, got %+v", claimed)
	}
}

func TestFinishTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "codex", "box", "", testDefinition)
	if _, err := store.ClaimNextQueued(ctx); err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}
	if err := store.MarkSucceeded(ctx, job.ID, "2"); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}

	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != scheduler.StatusSucceeded {
		t.Fatalf("status = %s, want succeeded", got.Status)
	}
	if got.ResultTrack != "2" {
		t.Fatalf("result track = %q, want %q", got.ResultTrack, "2")
	}
	if got.FinishedAt == nil {
		t.Fatal("finish should record finished_at")
	}
}

func TestCancelQueuedOnlyCancelsQueuedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "codex", "box", "", testDefinition)
	cancelled, err := store.CancelQueued(ctx, job.ID)
	if err != nil {
		t.Fatalf("CancelQueued: %v", err)
	}
	if !cancelled {
		t.Fatal("expected queued job to cancel")
	}

	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != scheduler.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}

	cancelled, err = store.CancelQueued(ctx, job.ID)
	if err != nil {
		t.Fatalf("CancelQueued: %v", err)
	}
	if cancelled {
		t.Fatal("terminal job must not cancel again")
	}
}

func TestReclaimStaleFailsAbandonedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "codex", "box", "", testDefinition)
	if _, err := store.ClaimNextQueued(ctx); err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}

	reclaimed, err := store.ReclaimStale(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("reclaimed = %d, want 1", reclaimed)
	}

	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != scheduler.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("reclaim should record an error message")
	}
}

func TestReclaimStaleKeepsFreshJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "codex", "box", "", testDefinition)
	if _, err := store.ClaimNextQueued(ctx); err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}
	if err := store.UpdateHeartbeat(ctx, job.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	reclaimed, err := store.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("reclaimed = %d, want 0", reclaimed)
	}
}

func TestRetryFailedRequeues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "codex", "box", "", testDefinition)
	if _, err := store.ClaimNextQueued(ctx); err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, "provider crashed"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	retried, err := store.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried = %d, want 1", retried)
	}

	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != scheduler.StatusQueued {
		t.Fatalf("status = %s, want queued", got.Status)
	}
	if got.ErrorMessage != "" {
		t.Fatalf("error message should clear, got %q", got.ErrorMessage)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "codex", "box", "", testDefinition)
	running := testsupport.NewJob(t, store, "codex", "box", "0", testDefinition)
	if _, err := store.ClaimNextQueued(ctx); err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}

	jobs, err := store.List(ctx, scheduler.StatusRunning)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}
	if jobs[0].ID == running.ID {
		t.Fatalf("claim order violated: running job is %s", jobs[0].ID)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}
}

func TestHealthCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "codex", "box", "", testDefinition)
	job := testsupport.NewJob(t, store, "codex", "box", "0", testDefinition)
	if _, err := store.ClaimNextQueued(ctx); err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}
	_ = job

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 {
		t.Fatalf("total = %d, want 2", health.Total)
	}
	if health.Queued != 1 || health.Running != 1 {
		t.Fatalf("unexpected status counts: %+v", health)
	}
}

func TestClearFinishedKeepsActiveJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	done := testsupport.NewJob(t, store, "codex", "box", "", testDefinition)
	testsupport.NewJob(t, store, "codex", "box", "0", testDefinition)
	if _, err := store.ClaimNextQueued(ctx); err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}
	if err := store.MarkSucceeded(ctx, done.ID, "1"); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}

	removed, err := store.ClearFinished(ctx)
	if err != nil {
		t.Fatalf("ClearFinished: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("len(remaining) = %d, want 1", len(remaining))
	}
}
