package testsupport

import (
	"context"
	"testing"

	"scriptorium/internal/config"
	"scriptorium/internal/scheduler"
)

// MustOpenStore opens a scheduler.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *scheduler.Store {
	t.Helper()

	store, err := scheduler.Open(cfg)
	if err != nil {
		t.Fatalf("scheduler.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob enqueues a job for tests using the provided store.
func NewJob(t testing.TB, store *scheduler.Store, projectID, sandboxID, parentTrack, definitionJSON string) *scheduler.Job {
	t.Helper()

	job, err := store.Enqueue(context.Background(), projectID, sandboxID, parentTrack, definitionJSON, "test job")
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}
