package api

import (
	"context"
	"fmt"
	"os"

	"scriptorium/internal/config"
	"scriptorium/internal/project"
	"scriptorium/internal/scheduler"
	"scriptorium/internal/snapshot"
	"scriptorium/internal/track"
)

// ListJobsRequest selects jobs by status; empty Statuses lists everything.
type ListJobsRequest struct {
	Config   *config.Config
	Statuses []string
}

// ListJobs returns transport views of matching jobs, newest first.
func ListJobs(ctx context.Context, req ListJobsRequest) ([]JobView, error) {
	cfg := req.Config
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	statuses := make([]scheduler.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		status, ok := scheduler.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("unknown job status %q", raw)
		}
		statuses = append(statuses, status)
	}

	store, err := scheduler.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	jobs, err := store.List(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return FromJobs(jobs), nil
}

// DescribeJob fetches one job view; a nil view means the id is unknown.
func DescribeJob(ctx context.Context, cfg *config.Config, id string) (*JobView, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	store, err := scheduler.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	job, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch job: %w", err)
	}
	if job == nil {
		return nil, nil
	}
	view := FromJob(job)
	return &view, nil
}

// CancelQueuedJob cancels a job that has not started. Running jobs are
// cancelled through the daemon, which owns the execution contexts.
func CancelQueuedJob(ctx context.Context, cfg *config.Config, id string) (bool, error) {
	if cfg == nil {
		return false, fmt.Errorf("configuration is required")
	}
	store, err := scheduler.Open(cfg)
	if err != nil {
		return false, fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	return store.CancelQueued(ctx, id)
}

// RetryJobs re-queues the given failed jobs and reports how many changed.
func RetryJobs(ctx context.Context, cfg *config.Config, ids []string) (int64, error) {
	if cfg == nil {
		return 0, fmt.Errorf("configuration is required")
	}
	store, err := scheduler.Open(cfg)
	if err != nil {
		return 0, fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	return store.RetryFailed(ctx, ids...)
}

// ClearFinishedJobs removes terminal jobs from the store.
func ClearFinishedJobs(ctx context.Context, cfg *config.Config) (int64, error) {
	if cfg == nil {
		return 0, fmt.Errorf("configuration is required")
	}
	store, err := scheduler.Open(cfg)
	if err != nil {
		return 0, fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	return store.ClearFinished(ctx)
}

// JobHealth summarizes the job store for status surfaces.
func JobHealth(ctx context.Context, cfg *config.Config) (HealthView, error) {
	if cfg == nil {
		return HealthView{}, fmt.Errorf("configuration is required")
	}
	store, err := scheduler.Open(cfg)
	if err != nil {
		return HealthView{}, fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	summary, err := store.Health(ctx)
	if err != nil {
		return HealthView{}, fmt.Errorf("job store health: %w", err)
	}
	return FromHealth(summary), nil
}

// TreeRequest addresses a subtree of one sandbox.
type TreeRequest struct {
	Config    *config.Config
	ProjectID string
	SandboxID string
	// At roots the returned view; empty addresses the whole tree.
	At track.Track
}

// SnapshotTree renders the sandbox subtree as nested transport views.
func SnapshotTree(req TreeRequest) (SnapshotView, error) {
	tree, err := openTree(req.Config, req.ProjectID, req.SandboxID)
	if err != nil {
		return SnapshotView{}, err
	}
	return FromTree(tree, req.At)
}

// LockSnapshot marks a snapshot as consumed by an external source.
func LockSnapshot(cfg *config.Config, projectID, sandboxID string, at track.Track, sourceID, comment string) error {
	tree, err := openTree(cfg, projectID, sandboxID)
	if err != nil {
		return err
	}
	return tree.SetLock(at, sourceID, comment)
}

// UnlockSnapshot releases a snapshot lock.
func UnlockSnapshot(cfg *config.Config, projectID, sandboxID string, at track.Track) error {
	tree, err := openTree(cfg, projectID, sandboxID)
	if err != nil {
		return err
	}
	return tree.ClearLock(at)
}

// DescribeSnapshot updates a snapshot's label and description.
func DescribeSnapshot(cfg *config.Config, projectID, sandboxID string, at track.Track, label, description string) error {
	tree, err := openTree(cfg, projectID, sandboxID)
	if err != nil {
		return err
	}
	return tree.UpdateConfiguration(at, label, description)
}

// ResetSandbox discards every snapshot of the sandbox and recreates an
// empty root.
func ResetSandbox(cfg *config.Config, projectID, sandboxID string) error {
	tree, err := openTree(cfg, projectID, sandboxID)
	if err != nil {
		return err
	}
	return tree.ResetRoot()
}

// RemoveSnapshot removes one derived snapshot and its subtree.
func RemoveSnapshot(cfg *config.Config, projectID, sandboxID string, parent track.Track, index int) error {
	tree, err := openTree(cfg, projectID, sandboxID)
	if err != nil {
		return err
	}
	return tree.RemoveDerived(parent, index)
}

// DaemonStatusSnapshot builds the status view for a possibly running daemon.
func DaemonStatusSnapshot(ctx context.Context, cfg *config.Config, running bool) (DaemonStatus, error) {
	jobs, err := JobHealth(ctx, cfg)
	if err != nil {
		return DaemonStatus{}, err
	}
	return DaemonStatus{
		Running:   running,
		PID:       os.Getpid(),
		Workers:   cfg.Scheduler.Workers,
		Jobs:      jobs,
		Workspace: cfg.Paths.WorkspaceDir,
	}, nil
}

func openTree(cfg *config.Config, projectID, sandboxID string) (*snapshot.Tree, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	projects := project.NewStore(cfg.Paths.WorkspaceDir)
	if _, err := projects.Load(projectID); err != nil {
		return nil, err
	}
	manager := snapshot.NewManager(projects)
	return manager.Tree(projectID, sandboxID)
}
