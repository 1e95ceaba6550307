package daemon

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// Factory builds ProcessWatchers with the strategy named in the settings.
type Factory struct {
	pm       domain.ProcessManager
	display  domain.DisplayController
	topology domain.TopologyController
	history  domain.HistoryStore
	logger   *zap.Logger
}

// NewFactory creates a watcher factory. topology and history may be nil.
func NewFactory(
	pm domain.ProcessManager,
	display domain.DisplayController,
	topology domain.TopologyController,
	history domain.HistoryStore,
	logger *zap.Logger,
) *Factory {
	return &Factory{
		pm:       pm,
		display:  display,
		topology: topology,
		history:  history,
		logger:   logger,
	}
}

// NewWatcher creates an Idle watcher from settings.
func (f *Factory) NewWatcher(settings domain.WatcherSettings) (domain.Watcher, error) {
	if settings.GamePath == "" {
		return nil, domain.ErrGamePathUnset
	}

	var strategy domain.EdgeStrategy
	switch settings.Strategy {
	case domain.StrategyDisplay, "":
		if f.display == nil {
			return nil, domain.ErrUnsupportedPlatform
		}
		strategy = NewDisplayStrategy(f.display, settings.Permanent)
	case domain.StrategyTopology:
		if f.topology == nil {
			return nil, fmt.Errorf("topology strategy is not available")
		}
		strategy = NewTopologyStrategy(f.topology, settings.KeepDevices, f.logger)
	default:
		return nil, fmt.Errorf("unknown strategy %q", settings.Strategy)
	}

	config := DefaultWatcherConfig()
	if settings.PollInterval > 0 {
		config.PollInterval = settings.PollInterval
	}
	config.RestoreOnStop = settings.RestoreOnStop

	return NewProcessWatcher(
		config,
		domain.NewProcessTarget(settings.GamePath),
		settings.Mode,
		strategy,
		f.pm,
		f.history,
		f.logger,
	), nil
}

// Ensure Factory implements domain.WatcherFactory.
var _ domain.WatcherFactory = (*Factory)(nil)
