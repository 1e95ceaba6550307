package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/disp_mon/internal/config"
	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
	"github.com/eliteGoblin/focusd/disp_mon/internal/infra"
	"github.com/eliteGoblin/focusd/disp_mon/internal/preset"
)

var tuneCmd = &cobra.Command{
	Use:   "tune [WIDTHxHEIGHT]",
	Short: "Write the target resolution into VALORANT's settings and lock them",
	Long: `Rewrites GameUserSettings.ini of the last logged-in account and the shared
copy: resolution set to the target (default [watcher] width x height),
letterbox, vsync and dynamic resolution off, exclusive fullscreen. Both
files are then marked read-only so the client keeps the values.

Run 'dispmon untune' to let the client save its own settings again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTune,
}

var untuneCmd = &cobra.Command{
	Use:   "untune",
	Short: "Make VALORANT's settings files writable again",
	RunE:  runUntune,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the VALORANT launcher",
	RunE:  runStart,
}

// valorantSettings loads [valorant], filling empty paths from the running
// game when it can.
func valorantSettings() (*config.Config, config.ValorantConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, config.ValorantConfig{}, err
	}
	fc, err := cfg.Settings()
	if err != nil {
		return nil, config.ValorantConfig{}, err
	}
	vc := fc.Valorant
	if vc.InstallDir == "" || vc.LauncherPath == "" {
		installDir, launcher := preset.ValorantPaths(infra.NewProcessManager())
		if vc.InstallDir == "" {
			vc.InstallDir = installDir
		}
		if vc.LauncherPath == "" {
			vc.LauncherPath = launcher
		}
	}
	return cfg, vc, nil
}

func runTune(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	cfg, vc, err := valorantSettings()
	if err != nil {
		return err
	}
	if vc.InstallDir == "" {
		return fmt.Errorf("VALORANT install not found: set [valorant].install_dir in %s or start the game once", cfg.Path())
	}

	var mode domain.DisplayMode
	if len(args) == 1 {
		if mode, err = domain.ParseDisplayMode(args[0]); err != nil {
			return err
		}
	} else {
		fc, err := cfg.Settings()
		if err != nil {
			return err
		}
		mode = fc.Watcher.Mode()
	}

	tuner := preset.NewValorantTuner(vc.InstallDir, &infra.RealCommandRunner{}, logger)
	if err := tuner.Tune(context.Background(), mode); err != nil {
		return err
	}
	printOK("VALORANT settings set to %dx%d and locked", mode.Width, mode.Height)
	return nil
}

func runUntune(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	cfg, vc, err := valorantSettings()
	if err != nil {
		return err
	}
	if vc.InstallDir == "" {
		return fmt.Errorf("VALORANT install not found: set [valorant].install_dir in %s", cfg.Path())
	}
	tuner := preset.NewValorantTuner(vc.InstallDir, &infra.RealCommandRunner{}, logger)
	if err := tuner.Untune(context.Background()); err != nil {
		return err
	}
	printOK("VALORANT settings unlocked")
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, vc, err := valorantSettings()
	if err != nil {
		return err
	}
	if vc.LauncherPath == "" {
		return fmt.Errorf("launcher not found: set [valorant].launcher_path in %s", cfg.Path())
	}

	pids, err := infra.NewProcessManager().FindByName(filepath.Base(vc.LauncherPath))
	if err == nil && len(pids) > 0 {
		printWarn("launcher already running (pid %v)", pids)
		return nil
	}
	if err := preset.LaunchValorant(context.Background(), &infra.RealCommandRunner{}, vc.LauncherPath); err != nil {
		return err
	}
	printOK("started %s", vc.LauncherPath)
	return nil
}
