package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"scriptorium/internal/config"
	"scriptorium/internal/logging"
	"scriptorium/internal/project"
	"scriptorium/internal/provider"
	"scriptorium/internal/services"
	"scriptorium/internal/snapshot"
	"scriptorium/internal/track"
	"scriptorium/internal/workflow"
)

// Request describes one schedule call.
type Request struct {
	ProjectID        string
	SandboxID        string
	ParentTrack      track.Track
	Definition       workflow.Definition
	ShortDescription string
	Rights           project.Rights
}

// Scheduler runs queued workflow jobs on a bounded worker pool and extends
// snapshot trees with their results.
type Scheduler struct {
	cfg      *config.Config
	store    *Store
	projects *project.Store
	trees    *snapshot.Manager
	registry *provider.Registry
	logger   *slog.Logger

	pollInterval      time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	active  map[string]context.CancelFunc
}

// New constructs a scheduler.
func New(cfg *config.Config, store *Store, projects *project.Store, trees *snapshot.Manager, registry *provider.Registry, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cfg:               cfg,
		store:             store,
		projects:          projects,
		trees:             trees,
		registry:          registry,
		logger:            logging.NewComponentLogger(logger, "scheduler"),
		pollInterval:      time.Duration(cfg.Scheduler.PollInterval) * time.Second,
		heartbeatInterval: time.Duration(cfg.Scheduler.HeartbeatInterval) * time.Second,
		heartbeatTimeout:  time.Duration(cfg.Scheduler.HeartbeatTimeout) * time.Second,
		active:            make(map[string]context.CancelFunc),
	}
}

// Schedule validates availability and track resolution, then enqueues a job.
// The availability predicate is evaluated before anything is queued.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (Handle, error) {
	if err := req.Definition.Validate(); err != nil {
		return Handle{}, err
	}

	p, err := s.projects.Load(req.ProjectID)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return Handle{}, services.Wrap(services.ErrNotAvailable, "scheduler", "schedule",
				fmt.Sprintf("project %q is not available", req.ProjectID), nil)
		}
		return Handle{}, err
	}
	sandbox, ok := p.Sandbox(req.SandboxID)
	if !ok {
		return Handle{}, services.Wrap(services.ErrNotAvailable, "scheduler", "schedule",
			fmt.Sprintf("sandbox %q does not exist in project %q", req.SandboxID, req.ProjectID), nil)
	}
	if !project.CanSchedule(p, sandbox, req.Rights) {
		return Handle{}, services.Wrap(services.ErrNotAvailable, "scheduler", "schedule",
			fmt.Sprintf("project %q sandbox %q is not in a schedulable state", req.ProjectID, req.SandboxID), nil)
	}

	tree, err := s.trees.Tree(req.ProjectID, req.SandboxID)
	if err != nil {
		return Handle{}, err
	}
	if _, err := tree.Resolve(req.ParentTrack); err != nil {
		return Handle{}, err
	}

	definitionJSON, err := req.Definition.Encode()
	if err != nil {
		return Handle{}, err
	}
	job, err := s.store.Enqueue(ctx, project.NormalizeID(req.ProjectID), project.NormalizeID(req.SandboxID),
		req.ParentTrack.String(), string(definitionJSON), req.ShortDescription)
	if err != nil {
		return Handle{}, err
	}

	s.logger.Info("job queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldProject, job.ProjectID),
		logging.String(logging.FieldSandbox, job.SandboxID),
		logging.String(logging.FieldTrack, job.ParentTrack))
	return Handle{ID: job.ID, State: job.Status}, nil
}

// Start reclaims stale jobs and launches the worker pool.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	cutoff := time.Now().Add(-s.heartbeatTimeout)
	if reclaimed, err := s.store.ReclaimStale(ctx, cutoff); err != nil {
		return fmt.Errorf("reclaim stale jobs: %w", err)
	} else if reclaimed > 0 {
		s.logger.Warn("reclaimed stale jobs", logging.Int64("count", reclaimed))
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	for i := 0; i < s.cfg.Scheduler.Workers; i++ {
		s.wg.Add(1)
		go s.worker(runCtx)
	}
	s.logger.Info("scheduler started", logging.Int("workers", s.cfg.Scheduler.Workers))
	return nil
}

// Stop cancels all workers and waits for them to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Cancel cancels a queued or running job. Returns false when the job is
// already in a terminal state or unknown.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	cancelRun, isRunning := s.active[jobID]
	s.mu.Unlock()
	if isRunning {
		cancelRun()
		return true, nil
	}
	return s.store.CancelQueued(ctx, jobID)
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		job, err := s.store.ClaimNextQueued(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("claim job", logging.Error(err))
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.pollInterval):
			}
			continue
		}
		s.run(ctx, job)
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job *Job) {
	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()

	s.mu.Lock()
	s.active[job.ID] = cancelJob
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, job.ID)
		s.mu.Unlock()
	}()

	logCtx := services.WithJobID(context.Background(), job.ID)
	logCtx = services.WithProject(logCtx, job.ProjectID)
	logCtx = services.WithSandbox(logCtx, job.SandboxID)
	logger := logging.WithContext(logCtx, s.logger)
	logger.Info("job started", logging.String(logging.FieldTrack, job.ParentTrack))

	stopHeartbeat := s.startHeartbeat(job.ID)
	defer stopHeartbeat()

	resultTrack, err := s.execute(jobCtx, job, logger)
	switch {
	case err == nil:
		if markErr := s.store.MarkSucceeded(context.Background(), job.ID, resultTrack.String()); markErr != nil {
			logger.Error("mark job succeeded", logging.Error(markErr))
		}
		logger.Info("job succeeded", logging.String("result_track", resultTrack.String()))
	case jobCtx.Err() != nil && errors.Is(err, context.Canceled):
		if markErr := s.store.MarkCancelled(context.Background(), job.ID); markErr != nil {
			logger.Error("mark job cancelled", logging.Error(markErr))
		}
		logger.Info("job cancelled")
	default:
		if markErr := s.store.MarkFailed(context.Background(), job.ID, err.Error()); markErr != nil {
			logger.Error("mark job failed", logging.Error(markErr))
		}
		logger.Error("job failed", logging.Error(err))
	}
}

// execute runs the job's providers into staging and appends the populated
// output. Provider work happens outside any tree lock; only the final
// append is serialized by the tree.
func (s *Scheduler) execute(ctx context.Context, job *Job, logger *slog.Logger) (track.Track, error) {
	definition, err := workflow.ParseDefinition([]byte(job.DefinitionJSON))
	if err != nil {
		return nil, err
	}
	parent, err := track.Parse(job.ParentTrack)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "scheduler", "execute", "stored parent track is invalid", err)
	}

	p, err := s.projects.Load(job.ProjectID)
	if err != nil {
		return nil, err
	}
	tree, err := s.trees.Tree(job.ProjectID, job.SandboxID)
	if err != nil {
		return nil, err
	}
	if _, err := tree.Resolve(parent); err != nil {
		return nil, err
	}

	stagingRoot := filepath.Join(s.cfg.Paths.StagingDir, "jobs", job.ID)
	defer func() {
		if err := os.RemoveAll(stagingRoot); err != nil {
			logger.Warn("clean job staging", logging.Error(err))
		}
	}()

	parentData := tree.DataDir(parent)
	outputDir := ""
	for i, step := range definition.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stepProvider, err := s.registry.Resolve(step.Provider)
		if err != nil {
			return nil, err
		}
		outputDir = filepath.Join(stagingRoot, fmt.Sprintf("step-%d", i))
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create step staging: %w", err)
		}
		err = stepProvider.Run(ctx, provider.Request{
			ProjectID:     job.ProjectID,
			SandboxID:     job.SandboxID,
			ParentTrack:   parent,
			ParentDataDir: parentData,
			FoliosDir:     s.projects.FoliosDir(job.ProjectID),
			OutputDir:     outputDir,
			Params:        step.Params,
		})
		if err != nil {
			return nil, err
		}
		// Each step consumes the previous step's output.
		parentData = outputDir
	}

	meta := snapshot.Meta{Label: job.ShortDescription, Description: definition.Label}
	if meta.Label == "" {
		meta.Label = definition.ID
	}
	child, err := tree.AppendPopulated(parent, meta, outputDir)
	if err != nil {
		return nil, err
	}

	sandbox, _ := p.Sandbox(job.SandboxID)
	if err := s.refreshMetsDocument(p, sandbox, tree, child); err != nil {
		// The appended snapshot is valid; a stale document surfaces later as
		// PreconditionFailed and can be regenerated.
		logger.Warn("refresh mets document", logging.Error(err))
	}
	return child, nil
}

func (s *Scheduler) startHeartbeat(jobID string) func() {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(s.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := s.store.UpdateHeartbeat(context.Background(), jobID); err != nil {
					s.logger.Warn("update heartbeat",
						logging.String(logging.FieldJobID, jobID), logging.Error(err))
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}
