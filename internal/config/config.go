// Package config loads dispmon.toml through viper and hands watcher
// settings to the core.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
	"github.com/eliteGoblin/focusd/disp_mon/internal/infra"
)

// DefaultListen is the control API address.
const DefaultListen = "127.0.0.1:7380"

// reloadDebounce collapses the burst of events an editor save produces.
const reloadDebounce = 200 * time.Millisecond

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Watcher  WatcherConfig  `toml:"watcher" mapstructure:"watcher"`
	Topology TopologyConfig `toml:"topology" mapstructure:"topology"`
	Control  ControlConfig  `toml:"control" mapstructure:"control"`
	Log      LogConfig      `toml:"log" mapstructure:"log"`
	History  HistoryConfig  `toml:"history" mapstructure:"history"`
	Valorant ValorantConfig `toml:"valorant" mapstructure:"valorant"`
}

type WatcherConfig struct {
	GamePath      string        `toml:"game_path" mapstructure:"game_path"`
	Width         uint32        `toml:"width" mapstructure:"width"`
	Height        uint32        `toml:"height" mapstructure:"height"`
	RefreshRate   uint32        `toml:"refresh_rate" mapstructure:"refresh_rate"`
	BitsPerPixel  uint32        `toml:"bits_per_pixel" mapstructure:"bits_per_pixel"`
	Monitor       string        `toml:"monitor" mapstructure:"monitor"`
	Strategy      string        `toml:"strategy" mapstructure:"strategy"`
	Permanent     bool          `toml:"permanent" mapstructure:"permanent"`
	PollInterval  time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
	RestoreOnStop bool          `toml:"restore_on_stop" mapstructure:"restore_on_stop"`
	RestoreOnExit bool          `toml:"restore_on_exit" mapstructure:"restore_on_exit"`
	AutoStart     bool          `toml:"auto_start" mapstructure:"auto_start"`
}

type TopologyConfig struct {
	Tool string   `toml:"tool" mapstructure:"tool"`
	Keep []string `toml:"keep" mapstructure:"keep"`
}

type ControlConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"`
}

type LogConfig struct {
	Dir        string `toml:"dir" mapstructure:"dir"`
	Level      string `toml:"level" mapstructure:"level"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Path    string `toml:"path" mapstructure:"path"`
	Encrypt bool   `toml:"encrypt" mapstructure:"encrypt"`
}

// ValorantConfig locates the VALORANT install for settings tuning.
type ValorantConfig struct {
	InstallDir   string `toml:"install_dir" mapstructure:"install_dir"`     // folder holding VALORANT.exe and ShooterGame
	LauncherPath string `toml:"launcher_path" mapstructure:"launcher_path"` // launcher started by `dispmon start`
}

// Mode returns the configured display mode target.
func (w WatcherConfig) Mode() domain.DisplayMode {
	return domain.DisplayMode{
		Width:        w.Width,
		Height:       w.Height,
		RefreshRate:  w.RefreshRate,
		BitsPerPixel: w.BitsPerPixel,
		MonitorName:  w.Monitor,
	}
}

// Config is the configuration collaborator. It is safe for concurrent use.
type Config struct {
	mu   sync.Mutex
	path string
	v    *viper.Viper
	fs   domain.FileSystemManager
}

// DefaultPath returns <user config dir>/dispmon/dispmon.toml.
func DefaultPath() string {
	return infra.DetectExecMode().ConfigPath
}

// New creates a config holding defaults only; nothing is read from path.
func New(path string) *Config {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)
	return &Config{path: path, v: v, fs: infra.NewFileSystemManager()}
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	c := New(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("watcher.game_path", "")
	v.SetDefault("watcher.width", 1920)
	v.SetDefault("watcher.height", 1080)
	v.SetDefault("watcher.refresh_rate", 60)
	v.SetDefault("watcher.bits_per_pixel", 0)
	v.SetDefault("watcher.monitor", "")
	v.SetDefault("watcher.strategy", string(domain.StrategyDisplay))
	v.SetDefault("watcher.permanent", false)
	v.SetDefault("watcher.poll_interval", "2s")
	v.SetDefault("watcher.restore_on_stop", false)
	v.SetDefault("watcher.restore_on_exit", true)
	v.SetDefault("watcher.auto_start", true)

	v.SetDefault("topology.tool", "pnputil")
	v.SetDefault("topology.keep", []string{})

	v.SetDefault("control.listen", DefaultListen)

	v.SetDefault("log.dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", infra.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", infra.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", infra.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
	v.SetDefault("history.encrypt", false)

	v.SetDefault("valorant.install_dir", "")
	v.SetDefault("valorant.launcher_path", "")
}

// Path returns the config file location.
func (c *Config) Path() string {
	return c.path
}

func (c *Config) readLocked() error {
	if _, err := os.Stat(c.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", c.path, err)
	}
	return nil
}

// Settings re-reads the file and returns the full configuration.
func (c *Config) Settings() (FileConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readLocked(); err != nil {
		return FileConfig{}, err
	}
	var fc FileConfig
	if err := c.v.Unmarshal(&fc); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config %s: %w", c.path, err)
	}
	fc.Watcher.GamePath = c.fs.ExpandHome(fc.Watcher.GamePath)
	fc.Log.Dir = c.fs.ExpandHome(fc.Log.Dir)
	fc.History.Path = c.fs.ExpandHome(fc.History.Path)
	fc.Valorant.InstallDir = c.fs.ExpandHome(fc.Valorant.InstallDir)
	fc.Valorant.LauncherPath = c.fs.ExpandHome(fc.Valorant.LauncherPath)
	return fc, nil
}

// WatcherSettings re-reads the file so every toggle sees the latest target.
func (c *Config) WatcherSettings() (domain.WatcherSettings, error) {
	fc, err := c.Settings()
	if err != nil {
		return domain.WatcherSettings{}, err
	}
	return ToWatcherSettings(fc)
}

// ToWatcherSettings converts the file sections into core settings.
func ToWatcherSettings(fc FileConfig) (domain.WatcherSettings, error) {
	w := fc.Watcher
	if w.GamePath == "" {
		return domain.WatcherSettings{}, domain.ErrGamePathUnset
	}

	strategy := domain.StrategyKind(w.Strategy)
	switch strategy {
	case "":
		strategy = domain.StrategyDisplay
	case domain.StrategyDisplay, domain.StrategyTopology:
	default:
		return domain.WatcherSettings{}, fmt.Errorf("invalid strategy %q: want %s or %s",
			w.Strategy, domain.StrategyDisplay, domain.StrategyTopology)
	}

	return domain.WatcherSettings{
		GamePath:      w.GamePath,
		Mode:          w.Mode(),
		Strategy:      strategy,
		Permanent:     w.Permanent,
		PollInterval:  w.PollInterval,
		RestoreOnStop: w.RestoreOnStop,
		KeepDevices:   fc.Topology.Keep,
	}, nil
}

// Set overrides one key (e.g. "watcher.game_path") until the next Save.
func (c *Config) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.Set(key, value)
}

// Save writes the current settings, defaults included, to the config file.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return c.v.WriteConfigAs(c.path)
}

// WriteDefault creates path with the default settings. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return New(path).v.SafeWriteConfigAs(path)
}

// Watch calls onChange with freshly read watcher settings whenever the
// config file is written, until ctx is cancelled. The directory is watched
// so editors that replace the file are followed.
func (c *Config) Watch(ctx context.Context, logger *zap.Logger, onChange func(domain.WatcherSettings, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(c.path)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(c.path), err)
	}

	target := filepath.Clean(c.path)
	go func() {
		defer w.Close()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != target || !(e.Has(fsnotify.Write) || e.Has(fsnotify.Create)) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, func() {
					if ctx.Err() != nil {
						return
					}
					logger.Info("config changed", zap.String("path", c.path))
					onChange(c.WatcherSettings())
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watch error", zap.Error(err))
			}
		}
	}()
	return nil
}
