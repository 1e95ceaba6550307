package domain

import "context"

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsTargetRunning reports whether any live process matches the target.
	IsTargetRunning(target ProcessTarget) (bool, error)

	// FindByName returns PIDs of processes whose name equals the pattern (case-insensitive).
	FindByName(pattern string) ([]int, error)

	// ResolveExecutablePath returns the executable path of the running process with this name.
	ResolveExecutablePath(name string) (string, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// DisplayController is the side-effect-isolating layer over the OS display API.
type DisplayController interface {
	// CurrentMode reads the active mode of the primary output.
	CurrentMode() (DisplayMode, error)

	// Modes lists the primary adapter's modes, de-duplicated, highest first.
	Modes() ([]DisplayMode, error)

	// Monitors maps active output device names to their adapter description.
	Monitors() (map[string]string, error)

	// ChangeMode tests then applies mode globally. permanent persists it as the default.
	ChangeMode(mode DisplayMode, permanent bool) error

	// ChangeModeForMonitor tests then applies mode on one named output.
	ChangeModeForMonitor(deviceName string, mode DisplayMode, permanent bool) error

	// RestoreDefaults reverts to the OS-stored persistent configuration.
	RestoreDefaults() error
}

// TopologyController enables and disables individual monitor devices.
// Enable and Disable are best-effort: failures are logged, not returned.
type TopologyController interface {
	Scan(ctx context.Context) ([]DeviceMonitor, error)
	Disable(ctx context.Context, instanceID string)
	Enable(ctx context.Context, instanceID string)
}

// EdgeStrategy is what a watcher does on process transitions.
type EdgeStrategy interface {
	// Name identifies the strategy in logs and history.
	Name() string

	// OnGameStart runs on the not-running -> running edge.
	OnGameStart(ctx context.Context, mode DisplayMode) error

	// OnGameStop runs on the running -> not-running edge.
	OnGameStop(ctx context.Context) error
}

// Watcher is a process watcher bound to one target and one display mode.
type Watcher interface {
	Start()
	// StartAfter starts watching but takes no action until after is closed.
	StartAfter(after <-chan struct{})
	Stop() bool
	// Done is closed once the most recent polling task has exited.
	Done() <-chan struct{}
	IsWatching() bool
	IsGameRunning() bool
	Mode() DisplayMode
	SetMode(mode DisplayMode)
	Target() ProcessTarget
}

// WatcherFactory builds watchers from externally supplied settings.
type WatcherFactory interface {
	NewWatcher(settings WatcherSettings) (Watcher, error)
}

// SettingsSource is the configuration collaborator.
type SettingsSource interface {
	WatcherSettings() (WatcherSettings, error)
}

// HistoryStore persists session events.
type HistoryStore interface {
	Record(event SessionEvent) error
	Recent(limit int) ([]SessionEvent, error)
	Close() error
}

// InstanceRegistry tracks the running `run` instance.
// Implementation: JSON file in the data directory.
type InstanceRegistry interface {
	Register(instance Instance) error
	Get() (*Instance, error)
	IsAlive() (bool, error)
	Clear() error
	GetPath() string
}

// HistoryKeyStore holds the key the session history database is encrypted with.
type HistoryKeyStore interface {
	// Load returns the stored key.
	Load() ([]byte, error)

	// Save persists key. An existing key is never overwritten.
	Save(key []byte) error

	// Exists reports whether a key has been saved.
	Exists() bool
}

// FileSystemManager handles filesystem path checks.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}
