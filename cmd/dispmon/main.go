// Package main is the CLI entry point for dispmon.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/config"
	"github.com/eliteGoblin/focusd/disp_mon/internal/infra"
	"github.com/eliteGoblin/focusd/disp_mon/internal/server"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dispmon",
	Short: "Switches display settings while a game is running",
	Long: `dispmon watches for a game process and reconfigures the displays while it
runs: either a resolution/refresh-rate change, or disabling every monitor
but one. Settings are restored when the game exits.

Start the watcher with 'dispmon run', then control it with 'dispmon toggle'.`,
	Version:      Version,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath  string
	controlAddr string
	verbose     bool
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <user config dir>/dispmon/dispmon.toml)")
	rootCmd.PersistentFlags().StringVar(&controlAddr, "addr", "", "Control API address of the running instance")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(monitorsCmd)
	rootCmd.AddCommand(modesCmd)
	rootCmd.AddCommand(currentCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(tuneCmd)
	rootCmd.AddCommand(untuneCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func loadConfig() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}

// cliLogger is the console logger of one-shot commands.
func cliLogger() *zap.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := infra.NewLogger(infra.LogConfig{Level: level, Console: true})
	if err != nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

// controlClient locates the running instance: --addr first, then the
// instance file, then the configured listen address.
func controlClient(logger *zap.Logger) (*server.Client, error) {
	addr := controlAddr
	if addr == "" {
		paths := infra.DetectExecMode()
		instances := infra.NewFileRegistry(paths.InstancePath, infra.NewProcessManager())
		if inst, err := instances.Get(); err == nil && inst != nil {
			if alive, _ := instances.IsAlive(); alive {
				addr = inst.ControlAddr
			}
		}
	}
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		fc, err := cfg.Settings()
		if err != nil {
			return nil, err
		}
		addr = fc.Control.Listen
	}

	client := server.NewClient(addr, server.DefaultClientTimeout, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !client.IsReachable(ctx) {
		return nil, fmt.Errorf("dispmon is not running at %s (start it with 'dispmon run')", addr)
	}
	return client, nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("dispmon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
