// Package usecase implements the command-dispatch operations over the watcher.
package usecase

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// WatcherRegistry owns the single watcher slot and the monitors cache.
// Every entry point (control API, CLI, config reload) shares one registry.
type WatcherRegistry struct {
	factory  domain.WatcherFactory
	settings domain.SettingsSource
	display  domain.DisplayController
	logger   *zap.Logger

	// mu guards the slot only; it is never held across a polling tick.
	mu      sync.Mutex
	watcher domain.Watcher
	active  domain.WatcherSettings // settings the watcher was built from

	monMu    sync.RWMutex
	monitors map[string]string
}

// NewWatcherRegistry creates an empty registry. display may be nil on
// platforms without a display backend.
func NewWatcherRegistry(
	factory domain.WatcherFactory,
	settings domain.SettingsSource,
	display domain.DisplayController,
	logger *zap.Logger,
) *WatcherRegistry {
	return &WatcherRegistry{
		factory:  factory,
		settings: settings,
		display:  display,
		logger:   logger,
		monitors: make(map[string]string),
	}
}

// SelectOrCreate updates the mode of the existing watcher, or constructs an
// Idle one from settings when the slot is empty.
func (r *WatcherRegistry) SelectOrCreate(settings domain.WatcherSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcher != nil {
		r.watcher.SetMode(settings.Mode)
		r.active.Mode = settings.Mode
		return nil
	}
	return r.createLocked(settings)
}

// SelectMonitor binds the display mode target to one output. An empty name
// targets the primary output. Names missing from a non-empty monitors cache
// are rejected.
func (r *WatcherRegistry) SelectMonitor(name string) error {
	if name != "" {
		r.monMu.RLock()
		_, known := r.monitors[name]
		cached := len(r.monitors)
		r.monMu.RUnlock()
		if cached > 0 && !known {
			return fmt.Errorf("%w: %q", domain.ErrMonitorNotFound, name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcher != nil {
		mode := r.watcher.Mode().WithMonitor(name)
		r.watcher.SetMode(mode)
		r.active.Mode = mode
		return nil
	}

	settings, err := r.settings.WatcherSettings()
	if err != nil {
		return err
	}
	settings.Mode = settings.Mode.WithMonitor(name)
	return r.createLocked(settings)
}

// Toggle stops a watching watcher (returns false) or starts an idle one
// (returns true), constructing it from the settings source first if needed.
func (r *WatcherRegistry) Toggle() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcher == nil {
		settings, err := r.settings.WatcherSettings()
		if err != nil {
			return false, err
		}
		if err := r.createLocked(settings); err != nil {
			return false, err
		}
	}

	if r.watcher.IsWatching() {
		r.watcher.Stop()
		r.logger.Info("watching stopped", zap.String("target", r.watcher.Target().Value))
		return false, nil
	}
	r.watcher.Start()
	r.logger.Info("watching started", zap.String("target", r.watcher.Target().Value))
	return true, nil
}

// Reconfigure applies new settings. When only the mode differs it is
// swapped in place; any other change replaces the watcher, keeping its
// watching state.
func (r *WatcherRegistry) Reconfigure(settings domain.WatcherSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcher == nil {
		return r.createLocked(settings)
	}
	if sameExceptMode(r.active, settings) {
		r.watcher.SetMode(settings.Mode)
		r.active.Mode = settings.Mode
		return nil
	}

	next, err := r.factory.NewWatcher(settings)
	if err != nil {
		return err
	}
	old := r.watcher
	wasWatching := old.Stop()
	r.watcher = next
	r.active = settings
	if wasWatching {
		// the old task may still be finishing an in-flight display call
		next.StartAfter(old.Done())
	}
	r.logger.Info("watcher replaced", zap.String("target", settings.GamePath), zap.Bool("watching", wasWatching))
	return nil
}

func sameExceptMode(a, b domain.WatcherSettings) bool {
	a.Mode, b.Mode = domain.DisplayMode{}, domain.DisplayMode{}
	return reflect.DeepEqual(a, b)
}

// IsWatching reports whether the watcher has an active polling task.
func (r *WatcherRegistry) IsWatching() bool {
	w := r.current()
	return w != nil && w.IsWatching()
}

// IsGameRunning reports the watcher's last observed process state.
func (r *WatcherRegistry) IsGameRunning() bool {
	w := r.current()
	return w != nil && w.IsGameRunning()
}

// Watcher returns the current watcher, or nil.
func (r *WatcherRegistry) Watcher() domain.Watcher {
	return r.current()
}

// ScanMonitors re-enumerates active outputs and refreshes the cache.
// Without a display backend it fails with domain.ErrUnsupportedPlatform.
func (r *WatcherRegistry) ScanMonitors() (map[string]string, error) {
	if r.display == nil {
		return nil, domain.ErrUnsupportedPlatform
	}
	monitors, err := r.display.Monitors()
	if err != nil {
		return nil, err
	}

	r.monMu.Lock()
	r.monitors = maps.Clone(monitors)
	r.monMu.Unlock()

	r.logger.Debug("monitors scanned", zap.Int("count", len(monitors)))
	return maps.Clone(monitors), nil
}

// Monitors returns the last scan without rescanning.
func (r *WatcherRegistry) Monitors() map[string]string {
	r.monMu.RLock()
	defer r.monMu.RUnlock()
	return maps.Clone(r.monitors)
}

// Shutdown stops the watcher and waits for its polling task to exit.
func (r *WatcherRegistry) Shutdown(ctx context.Context) error {
	w := r.current()
	if w == nil {
		return nil
	}
	w.Stop()

	select {
	case <-w.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *WatcherRegistry) current() domain.Watcher {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watcher
}

func (r *WatcherRegistry) createLocked(settings domain.WatcherSettings) error {
	w, err := r.factory.NewWatcher(settings)
	if err != nil {
		return err
	}
	r.watcher = w
	r.active = settings
	r.logger.Info("watcher created",
		zap.String("target", settings.GamePath),
		zap.Stringer("mode", settings.Mode),
		zap.String("strategy", string(settings.Strategy)))
	return nil
}
