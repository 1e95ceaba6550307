package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/config"
	"github.com/eliteGoblin/focusd/disp_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/disp_mon/internal/display"
	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
	"github.com/eliteGoblin/focusd/disp_mon/internal/infra"
	"github.com/eliteGoblin/focusd/disp_mon/internal/metrics"
	"github.com/eliteGoblin/focusd/disp_mon/internal/server"
	"github.com/eliteGoblin/focusd/disp_mon/internal/topology"
	"github.com/eliteGoblin/focusd/disp_mon/internal/usecase"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the watcher and its control API in the foreground",
	Long: `Runs the process watcher and serves the local control API until interrupted.
The watcher starts automatically when [watcher].auto_start is set; otherwise use
'dispmon toggle'. Config file edits are picked up without a restart.

Only one instance runs at a time.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	paths := infra.DetectExecMode()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fc, err := cfg.Settings()
	if err != nil {
		return err
	}

	logger, err := runLogger(fc.Log, paths)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	pm := infra.NewProcessManager()
	instances := infra.NewFileRegistry(paths.InstancePath, pm)
	if inst, _ := instances.Get(); inst != nil {
		if alive, _ := instances.IsAlive(); alive && inst.PID != pm.GetCurrentPID() {
			return fmt.Errorf("%w (pid %d, control %s)", domain.ErrAlreadyRunning, inst.PID, inst.ControlAddr)
		}
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Warn("failed to register metrics", zap.Error(err))
	}

	logger.Info("starting dispmon",
		zap.String("version", Version),
		zap.String("config", cfg.Path()),
		zap.String("exec_mode", paths.Mode.String()))

	// untyped nil when there is no backend, so the factory can tell
	var displayCtl domain.DisplayController
	if dc, err := display.New(logger, paths.DataDir); err != nil {
		logger.Warn("display control unavailable", zap.Error(err))
	} else {
		displayCtl = dc
	}

	if fc.Watcher.Strategy == string(domain.StrategyTopology) && !paths.IsElevated {
		logger.Warn("topology strategy needs an elevated process to enable or disable monitors")
	}
	topo := topology.NewController(fc.Topology.Tool, logger)

	var history domain.HistoryStore
	if fc.History.Enabled {
		store, err := openHistory(fc.History, paths)
		if err != nil {
			logger.Warn("session history disabled", zap.Error(err))
		} else {
			history = store
			defer store.Close()
		}
	}

	factory := daemon.NewFactory(pm, displayCtl, topo, history, logger)
	registry := usecase.NewWatcherRegistry(factory, cfg, displayCtl, logger)
	if displayCtl != nil {
		if _, err := registry.ScanMonitors(); err != nil {
			logger.Warn("failed to scan monitors", zap.Error(err))
		}
	}

	listen := fc.Control.Listen
	if controlAddr != "" {
		listen = controlAddr
	}
	router := server.NewRouter(registry, displayCtl, history, paths.Mode.String(), Version, logger)
	srv, addr, err := server.Listen(listen, router.Handler(), logger)
	if err != nil {
		return err
	}

	instance := domain.Instance{
		PID:         pm.GetCurrentPID(),
		ControlAddr: addr.String(),
		Version:     Version,
		StartedAt:   time.Now().Unix(),
	}
	if err := instances.Register(instance); err != nil {
		_ = srv.Close()
		return err
	}
	defer func() {
		if err := instances.Clear(); err != nil {
			logger.Warn("failed to clear instance file", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.Watch(ctx, logger, func(settings domain.WatcherSettings, err error) {
		if err != nil {
			logger.Warn("ignoring config change", zap.Error(err))
			return
		}
		if err := registry.Reconfigure(settings); err != nil {
			logger.Warn("failed to apply config change", zap.Error(err))
		}
	}); err != nil {
		logger.Warn("config hot reload disabled", zap.Error(err))
	}

	if fc.Watcher.AutoStart {
		if _, err := registry.Toggle(); err != nil {
			if errors.Is(err, domain.ErrGamePathUnset) {
				logger.Warn("not watching: set [watcher].game_path or run 'dispmon detect'", zap.String("config", cfg.Path()))
			} else {
				logger.Error("failed to start watching", zap.Error(err))
			}
		}
	}

	<-ctx.Done()
	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("control API shutdown", zap.Error(err))
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		logger.Warn("watcher did not stop in time", zap.Error(err))
	}
	if fc.Watcher.RestoreOnExit && displayCtl != nil {
		if err := displayCtl.RestoreDefaults(); err != nil {
			logger.Warn("failed to restore display settings", zap.Error(err))
		}
	}

	logger.Info("dispmon stopped")
	return nil
}

func runLogger(lc config.LogConfig, paths *infra.ExecModeConfig) (*zap.Logger, error) {
	dir := lc.Dir
	if dir == "" {
		dir = paths.LogDir
	}
	level := lc.Level
	if verbose {
		level = "debug"
	}
	return infra.NewLogger(infra.LogConfig{
		Dir:        dir,
		Level:      level,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
		Compress:   lc.Compress,
		Console:    true,
	})
}

// openHistory opens the session history, keyed when encryption is on.
func openHistory(hc config.HistoryConfig, paths *infra.ExecModeConfig) (*infra.SQLHistoryStore, error) {
	path := hc.Path
	if path == "" {
		path = paths.HistoryPath
	}

	var key []byte
	if hc.Encrypt {
		k, err := infra.EnsureHistoryKey(infra.NewHistoryKeyFile(paths.KeyPath))
		if err != nil {
			return nil, fmt.Errorf("failed to load history key: %w", err)
		}
		key = k
	}
	return infra.NewSQLHistoryStore(path, key)
}
