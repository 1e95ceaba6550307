package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/disp_mon/internal/infra"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Start or stop watching in the running instance",
	Long: `Flips the watcher of the running instance between watching and idle.
The game path is re-read from the config file when the watcher is created.`,
	RunE: runToggle,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show watcher status",
	Long:  `Shows whether the watcher is running, whether the game is detected and which display mode is targeted.`,
	RunE:  runStatus,
}

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "List or select monitors in the running instance",
	Long: `Lists the active outputs known to the running instance.
--scan re-enumerates them first; --select binds the target mode to one output
(an empty name selects the primary output).`,
	RunE: runMonitors,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent game start/stop events",
	RunE:  runHistory,
}

var (
	monitorsScan   bool
	monitorsSelect string
	historyLimit   int
)

func init() {
	monitorsCmd.Flags().BoolVar(&monitorsScan, "scan", false, "Re-enumerate outputs before listing")
	monitorsCmd.Flags().StringVar(&monitorsSelect, "select", "", "Bind the target mode to this output")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of events to show")
}

func runToggle(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	client, err := controlClient(logger)
	if err != nil {
		return err
	}
	watching, err := client.Toggle(context.Background())
	if err != nil {
		return err
	}
	if watching {
		printOK("watching started")
	} else {
		printOK("watching stopped")
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	paths := infra.DetectExecMode()
	client, err := controlClient(logger)
	if err != nil {
		fmt.Println(box("dispmon status",
			row("Status", errStyle.Render("NOT RUNNING")),
			row("Privileges", paths.Mode.String()),
			row("Config", resolveConfigPath()),
		))
		fmt.Println(mutedStyle.Render("Run 'dispmon run' to start the watcher."))
		return nil
	}

	status, err := client.Status(context.Background())
	if err != nil {
		return err
	}

	rows := []string{
		row("Status", okStyle.Render("RUNNING")+" "+mutedStyle.Render("v"+status.Version)),
		row("Watching", onOff(status.Watching, "yes", "no")),
		row("Game", onOff(status.Running, "running", "not running")),
	}
	if status.Target != "" {
		rows = append(rows, row("Target", status.Target))
	}
	if status.Mode != nil {
		rows = append(rows, row("Game mode", status.Mode.String()))
	}
	rows = append(rows,
		row("Privileges", status.ExecMode),
		row("Config", resolveConfigPath()),
	)
	fmt.Println(box("dispmon status", rows...))
	return nil
}

func runMonitors(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	client, err := controlClient(logger)
	if err != nil {
		return err
	}
	ctx := context.Background()

	if cmd.Flags().Changed("select") {
		if err := client.SelectMonitor(ctx, monitorsSelect); err != nil {
			return err
		}
		if monitorsSelect == "" {
			printOK("target mode bound to the primary output")
		} else {
			printOK("target mode bound to %s", monitorsSelect)
		}
		return nil
	}

	var monitors map[string]string
	if monitorsScan {
		monitors, err = client.ScanMonitors(ctx)
	} else {
		monitors, err = client.Monitors(ctx)
	}
	if err != nil {
		return err
	}
	printMonitors(monitors)
	return nil
}

func printMonitors(monitors map[string]string) {
	printTitle("Active monitors")
	if len(monitors) == 0 {
		fmt.Println(mutedStyle.Render("  none (try --scan)"))
		return
	}
	names := make([]string, 0, len(monitors))
	for name := range monitors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(indent(row(name, mutedStyle.Render(monitors[name]))))
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	client, err := controlClient(logger)
	if err != nil {
		return err
	}
	events, err := client.History(context.Background(), historyLimit)
	if err != nil {
		return err
	}

	printTitle("Recent sessions")
	if len(events) == 0 {
		fmt.Println(mutedStyle.Render("  no events recorded"))
		return nil
	}
	for _, e := range events {
		line := fmt.Sprintf("%s  %-8s %s  %s",
			mutedStyle.Render(e.At.Local().Format(time.DateTime)),
			e.Kind, e.Process, mutedStyle.Render("["+e.Strategy+"]"))
		if e.Mode != "" {
			line += " " + e.Mode
		}
		if e.Error != "" {
			line += " " + errStyle.Render("error: "+strconv.Quote(e.Error))
		}
		fmt.Println("  " + line)
	}
	return nil
}
