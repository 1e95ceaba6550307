package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/display"
	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
	"github.com/eliteGoblin/focusd/disp_mon/internal/infra"
	"github.com/eliteGoblin/focusd/disp_mon/internal/topology"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List the display modes the primary adapter supports",
	RunE:  runModes,
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the active display mode",
	RunE:  runCurrent,
}

var setCmd = &cobra.Command{
	Use:   "set WIDTHxHEIGHT[@RATE]",
	Short: "Change the display mode now",
	Long: `Tests the mode with the driver, then applies it. Without --permanent the
change lasts until 'dispmon restore' or a reboot.

With --exact the mode must be one the adapter advertises; a missing rate picks
the highest advertised rate.`,
	Args: cobra.ExactArgs(1),
	RunE: runSet,
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the stored default display configuration",
	RunE:  runRestore,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List monitor devices, or enable/disable one",
	Long: `Lists monitor devices as seen by the device tool.
--disable and --enable take an instance ID and need an elevated shell.`,
	RunE: runDevices,
}

var (
	targetMonitor string
	setExact      bool
	setPermanent  bool
	deviceDisable string
	deviceEnable  string
)

func init() {
	currentCmd.Flags().StringVar(&targetMonitor, "monitor", "", "Output device name (default primary)")
	setCmd.Flags().StringVar(&targetMonitor, "monitor", "", "Output device name (default primary)")
	setCmd.Flags().BoolVar(&setExact, "exact", false, "Only accept an advertised mode")
	setCmd.Flags().BoolVar(&setPermanent, "permanent", false, "Persist the mode as the default")
	devicesCmd.Flags().StringVar(&deviceDisable, "disable", "", "Disable the device with this instance ID")
	devicesCmd.Flags().StringVar(&deviceEnable, "enable", "", "Enable the device with this instance ID")
}

// openDisplay creates the display controller with its state in the
// per-user data directory, shared with the running daemon.
func openDisplay(logger *zap.Logger) (*display.Controller, error) {
	return display.New(logger, infra.DetectExecMode().DataDir)
}

func runModes(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	dc, err := openDisplay(logger)
	if err != nil {
		return err
	}
	modes, err := dc.Modes()
	if err != nil {
		return err
	}
	current, _ := dc.CurrentMode()

	printTitle("Supported display modes")
	for _, m := range modes {
		if m.SameResolution(current) && m.BitsPerPixel == current.BitsPerPixel {
			fmt.Println("  " + okStyle.Render(m.String()+"  (current)"))
			continue
		}
		fmt.Println("  " + m.String())
	}
	return nil
}

func runCurrent(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	dc, err := openDisplay(logger)
	if err != nil {
		return err
	}
	var mode domain.DisplayMode
	if targetMonitor != "" {
		mode, err = dc.CurrentModeForMonitor(targetMonitor)
	} else {
		mode, err = dc.CurrentMode()
	}
	if err != nil {
		return err
	}
	fmt.Println(mode.String())
	return nil
}

func runSet(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	want, err := domain.ParseDisplayMode(args[0])
	if err != nil {
		return err
	}
	dc, err := openDisplay(logger)
	if err != nil {
		return err
	}
	if setExact {
		if want, err = dc.Match(want); err != nil {
			return err
		}
	}

	if targetMonitor != "" {
		err = dc.ChangeModeForMonitor(targetMonitor, want, setPermanent)
	} else {
		err = dc.ChangeMode(want, setPermanent)
	}
	if err != nil {
		var cf *domain.ChangeFailedError
		if errors.As(err, &cf) && cf.Reason == domain.ReasonRestartRequired {
			printWarn("the driver needs a restart to apply %s", want)
		}
		return err
	}

	printOK("display mode set to %s", want.WithMonitor(targetMonitor))
	if setPermanent {
		fmt.Println(mutedStyle.Render("  stored as the default configuration"))
	}
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	dc, err := openDisplay(logger)
	if err != nil {
		return err
	}
	if err := dc.RestoreDefaults(); err != nil {
		return err
	}
	printOK("display settings restored")
	return nil
}

func runDevices(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	tool := topology.DefaultTool
	if cfg, err := loadConfig(); err == nil {
		if fc, err := cfg.Settings(); err == nil && fc.Topology.Tool != "" {
			tool = fc.Topology.Tool
		}
	}
	topo := topology.NewController(tool, logger)
	ctx := context.Background()

	switch {
	case deviceDisable != "":
		topo.Disable(ctx, deviceDisable)
		printOK("disable requested for %s", deviceDisable)
		return nil
	case deviceEnable != "":
		topo.Enable(ctx, deviceEnable)
		printOK("enable requested for %s", deviceEnable)
		return nil
	}

	devices, err := topo.Scan(ctx)
	if err != nil {
		return err
	}
	printTitle("Monitor devices")
	if len(devices) == 0 {
		fmt.Println(mutedStyle.Render("  none found"))
		return nil
	}
	for _, d := range devices {
		fmt.Println(indent(row(onOff(d.Started(), d.Status, d.Status), d.InstanceID)))
	}
	return nil
}
