// Package infra implements infrastructure concerns.
package infra

import (
	"os"
	"path/filepath"
)

// AppName names the per-user directories.
const AppName = "dispmon"

// ExecMode represents the privilege level the process runs with.
type ExecMode string

const (
	// ExecModeUser runs without elevation; display changes may be refused
	ExecModeUser ExecMode = "user"
	// ExecModeElevated runs as administrator (Windows) or root
	ExecModeElevated ExecMode = "elevated"
)

// ExecModeConfig holds paths and settings based on execution mode.
type ExecModeConfig struct {
	Mode         ExecMode
	ConfigDir    string // Where dispmon.toml lives
	ConfigPath   string // Full path to dispmon.toml
	DataDir      string // Where history, key and instance file live
	LogDir       string // Rotated log files
	HistoryPath  string // SQLite session history
	KeyPath      string // History encryption key
	InstancePath string // Running instance record
	IsElevated   bool
}

// DetectExecMode determines the execution mode and per-user paths.
func DetectExecMode() *ExecModeConfig {
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return ExecModeConfigFor(filepath.Join(base, AppName), IsElevated())
}

// ExecModeConfigFor lays out paths under a root directory.
func ExecModeConfigFor(root string, elevated bool) *ExecModeConfig {
	mode := ExecModeUser
	if elevated {
		mode = ExecModeElevated
	}
	dataDir := filepath.Join(root, "data")
	return &ExecModeConfig{
		Mode:         mode,
		ConfigDir:    root,
		ConfigPath:   filepath.Join(root, "dispmon.toml"),
		DataDir:      dataDir,
		LogDir:       filepath.Join(root, "logs"),
		HistoryPath:  filepath.Join(dataDir, "history.db"),
		KeyPath:      filepath.Join(dataDir, ".history.key"),
		InstancePath: filepath.Join(dataDir, "instance.json"),
		IsElevated:   elevated,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeElevated:
		return "elevated (administrator)"
	case ExecModeUser:
		return "user (not elevated)"
	default:
		return "unknown"
	}
}
