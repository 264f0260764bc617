package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"scriptorium/internal/api"
	"scriptorium/internal/collection"
	"scriptorium/internal/config"
	"scriptorium/internal/export"
	"scriptorium/internal/logging"
	"scriptorium/internal/project"
	"scriptorium/internal/provider"
	"scriptorium/internal/scheduler"
	"scriptorium/internal/snapshot"
)

// Daemon owns the background scheduler and enforces single-instance
// execution over a shared workspace.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *scheduler.Store
	sched    *scheduler.Scheduler
	projects *project.Store
	trees    *snapshot.Manager
	registry *provider.Registry
	bridge   *collection.Bridge
	exporter *export.Exporter
	server   *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies. The provider
// registry always carries the built-in copyimages provider; callers add
// external providers before Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := scheduler.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	projects := project.NewStore(cfg.Paths.WorkspaceDir)
	trees := snapshot.NewManager(projects)
	registry := provider.NewRegistry()
	registry.Register(provider.CopyImages{})

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		projects: projects,
		trees:    trees,
		registry: registry,
		lockPath: filepath.Join(cfg.Paths.LogDir, "scriptoriumd.lock"),
	}
	d.lock = flock.New(d.lockPath)
	d.sched = scheduler.New(cfg, store, projects, trees, registry, logger)
	d.bridge = collection.NewBridge(cfg, projects, trees, collection.NewStore(cfg.Paths.CollectionDir), logger)
	d.exporter = export.NewExporter(cfg, projects, trees, logger)
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Providers exposes the registry for external provider registration.
func (d *Daemon) Providers() *provider.Registry {
	return d.registry
}

// Start acquires the workspace lock, launches the scheduler, and begins
// serving the control API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scriptorium daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.sched.Start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.server.start(runCtx); err != nil {
		d.sched.Stop()
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("scriptorium daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("pid", os.Getpid()))
	return nil
}

// Stop halts the scheduler and API server and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.sched.Stop()
	d.server.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("scriptorium daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Addr returns the bound API address once started.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// Schedule submits a job through the running scheduler.
func (d *Daemon) Schedule(ctx context.Context, req scheduler.Request) (scheduler.Handle, error) {
	return d.sched.Schedule(ctx, req)
}

// CancelJob cancels a queued or running job.
func (d *Daemon) CancelJob(ctx context.Context, id string) (bool, error) {
	return d.sched.Cancel(ctx, id)
}

// Status summarizes daemon runtime state.
func (d *Daemon) Status(ctx context.Context) (api.DaemonStatus, error) {
	summary, err := d.store.Health(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	return api.DaemonStatus{
		Running:   d.running.Load(),
		PID:       os.Getpid(),
		Workers:   d.cfg.Scheduler.Workers,
		Jobs:      api.FromHealth(summary),
		Workspace: d.cfg.Paths.WorkspaceDir,
	}, nil
}
