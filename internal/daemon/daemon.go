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

	"reelflow/internal/api"
	"reelflow/internal/config"
	"reelflow/internal/logging"
	"reelflow/internal/orchestrator"
	"reelflow/internal/statestore"
	"reelflow/internal/tasks"
)

// Daemon coordinates the run pipeline services and enforces
// single-instance execution via a file lock.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *statestore.SQLiteStore
	sweeper   *statestore.Sweeper
	substrate *tasks.LocalSubstrate
	orch      *orchestrator.Orchestrator
	service   *api.Service

	logPath  string
	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	debug   *debugServer
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running    bool
	PID        int
	StorePath  string
	LockPath   string
	SocketPath string
	DebugBind  string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *statestore.SQLiteStore, sweeper *statestore.Sweeper, substrate *tasks.LocalSubstrate, orch *orchestrator.Orchestrator, service *api.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || substrate == nil || orch == nil || service == nil {
		return nil, errors.New("daemon requires config, store, substrate, orchestrator, and service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "reelflowd.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		sweeper:   sweeper,
		substrate: substrate,
		orch:      orch,
		service:   service,
		logPath:   filepath.Join(cfg.Paths.LogDir, "reelflow.log"),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, resumes persisted runs, and brings
// up the background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelflow daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.sweeper != nil {
		d.sweeper.Start()
	}
	if err := d.orch.Recover(runCtx); err != nil {
		d.logger.Warn("recovery scan failed", logging.Error(err))
	}
	if d.cfg.Paths.DebugBind != "" {
		debug, err := newDebugServer(d.cfg.Paths.DebugBind, d, d.logger)
		if err != nil {
			d.logger.Warn("debug listener unavailable", logging.Error(err))
		} else {
			d.debug = debug
			d.debug.Serve()
		}
	}

	d.running.Store(true)
	d.logger.Info("reelflow daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background services and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.debug != nil {
		d.debug.Close()
		d.debug = nil
	}
	if d.sweeper != nil {
		d.sweeper.Stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reelflow daemon stopped")
}

// Close releases every resource held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.substrate != nil {
		d.substrate.Close()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Service returns the application surface for transport servers.
func (d *Daemon) Service() *api.Service {
	return d.service
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		StorePath:  d.store.Path(),
		LockPath:   d.lockPath,
		SocketPath: d.cfg.Paths.SocketPath,
		DebugBind:  d.cfg.Paths.DebugBind,
	}
}
