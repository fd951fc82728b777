// Package daemonrun boots the reelflow daemon runtime: logging, state
// store, task substrate, orchestrator, and the IPC server. It is shared
// by the reelflowd binary and the CLI's daemon subcommand.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"reelflow/internal/api"
	"reelflow/internal/config"
	"reelflow/internal/daemon"
	"reelflow/internal/fsm"
	"reelflow/internal/ipc"
	"reelflow/internal/logging"
	"reelflow/internal/orchestrator"
	"reelflow/internal/progress"
	"reelflow/internal/providers"
	"reelflow/internal/render"
	"reelflow/internal/statestore"
	"reelflow/internal/tasks"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the reelflow daemon runtime loop and blocks until the
// context is canceled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "reelflowd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := statestore.OpenSQLite(cfg.StorePath())
	if err != nil {
		logger.Error("open state store", logging.Error(err))
		return err
	}
	defer store.Close()

	sweeper, err := statestore.NewSweeper(store, cfg.Store.SweepSchedule, logger)
	if err != nil {
		return fmt.Errorf("schedule snapshot sweep: %w", err)
	}

	repo := fsm.NewRepository(store, cfg.SnapshotTTL(), logger)
	hub := progress.NewHub(cfg.Orchestrator.ProgressCapacity)
	substrate := tasks.NewLocalSubstrate(cfg.Orchestrator.WorkerCount, logger)
	clients := providers.NewSet(cfg.Providers)
	orch := orchestrator.New(cfg, repo, substrate, clients, &render.OfflineRenderer{}, hub, logger)
	service := api.NewService(orch, hub)

	d, err := daemon.New(cfg, store, sweeper, substrate, orch, service, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, socketPath(cfg), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check the lock file and state store access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("reelflow daemon shutting down")
	return nil
}

func socketPath(cfg *config.Config) string {
	if cfg.Paths.SocketPath != "" {
		return cfg.Paths.SocketPath
	}
	return filepath.Join(cfg.Paths.LogDir, "reelflowd.sock")
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
