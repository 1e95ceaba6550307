package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/disp_mon/internal/config"
	"github.com/eliteGoblin/focusd/disp_mon/internal/infra"
	"github.com/eliteGoblin/focusd/disp_mon/internal/preset"
)

var detectCmd = &cobra.Command{
	Use:   "detect [PROCESS_NAME]",
	Short: "Find the executable path of a running game",
	Long: `Looks up the executable behind a running process, by name or through a known
game preset (see 'dispmon presets'). The game must be running.

With --save the path is written to [watcher].game_path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDetect,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List known game presets",
	RunE:  runPresets,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(resolveConfigPath())
	},
}

var (
	detectPreset string
	detectSave   bool
)

func init() {
	detectCmd.Flags().StringVar(&detectPreset, "preset", "", "Detect a known game by preset ID")
	detectCmd.Flags().BoolVar(&detectSave, "save", false, "Write the path to the config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	pm := infra.NewProcessManager()

	var (
		path string
		err  error
	)
	switch {
	case detectPreset != "":
		p, perr := preset.NewRegistry().Get(detectPreset)
		if perr != nil {
			return perr
		}
		path, err = preset.Detect(p, pm)
		if err == nil {
			fmt.Println(mutedStyle.Render(fmt.Sprintf("suggested strategy for %s: %s", p.Name(), p.Strategy())))
		}
	case len(args) == 1:
		path, err = pm.ResolveExecutablePath(args[0])
	default:
		return fmt.Errorf("give a process name or --preset (one of %v)", preset.NewRegistry().List())
	}
	if err != nil {
		return err
	}

	fmt.Println(path)
	if !detectSave {
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Set("watcher.game_path", path)
	if detectPreset == preset.ValorantID {
		installDir, launcher := preset.ValorantPaths(pm)
		if installDir != "" {
			cfg.Set("valorant.install_dir", installDir)
		}
		if launcher != "" {
			cfg.Set("valorant.launcher_path", launcher)
		}
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	printOK("game path saved to %s", cfg.Path())
	return nil
}

func runPresets(cmd *cobra.Command, args []string) error {
	printTitle("Known games")
	for _, p := range preset.NewRegistry().GetAll() {
		fmt.Printf("\n[%s] %s\n", p.ID(), p.Name())
		fmt.Println(row("  Strategy", string(p.Strategy())))
		fmt.Println("  Processes:")
		printList(p.ProcessNames())
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := resolveConfigPath()
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	printOK("wrote %s", path)
	fmt.Println(mutedStyle.Render("  set [watcher].game_path, or run 'dispmon detect --preset <id> --save' while the game runs"))
	return nil
}
