package daemon

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// DisplayStrategy switches the display mode while the game runs and
// restores the OS defaults when it exits.
type DisplayStrategy struct {
	display   domain.DisplayController
	permanent bool
}

// NewDisplayStrategy creates the resolution-switching strategy.
func NewDisplayStrategy(display domain.DisplayController, permanent bool) *DisplayStrategy {
	return &DisplayStrategy{display: display, permanent: permanent}
}

// Name identifies the strategy.
func (s *DisplayStrategy) Name() string {
	return string(domain.StrategyDisplay)
}

// OnGameStart applies mode, to one output when a monitor is bound.
func (s *DisplayStrategy) OnGameStart(ctx context.Context, mode domain.DisplayMode) error {
	if mode.MonitorName == "" {
		return s.display.ChangeMode(mode, s.permanent)
	}
	return s.display.ChangeModeForMonitor(mode.MonitorName, mode, s.permanent)
}

// OnGameStop restores the stored configuration rather than re-applying the
// pre-game mode, so desktop changes made during the session are honored.
func (s *DisplayStrategy) OnGameStop(ctx context.Context) error {
	return s.display.RestoreDefaults()
}

// TopologyStrategy disables monitor devices while the game runs and
// re-enables the ones it disabled when the game exits.
type TopologyStrategy struct {
	topology domain.TopologyController
	keep     map[string]bool
	logger   *zap.Logger

	mu       sync.Mutex
	disabled []string
}

// NewTopologyStrategy creates the monitor enable/disable strategy.
// Devices listed in keep are never disabled.
func NewTopologyStrategy(topology domain.TopologyController, keep []string, logger *zap.Logger) *TopologyStrategy {
	k := make(map[string]bool, len(keep))
	for _, id := range keep {
		k[id] = true
	}
	return &TopologyStrategy{topology: topology, keep: k, logger: logger}
}

// Name identifies the strategy.
func (s *TopologyStrategy) Name() string {
	return string(domain.StrategyTopology)
}

// OnGameStart disables every started monitor not in the keep list.
// A failed scan disables nothing.
func (s *TopologyStrategy) OnGameStart(ctx context.Context, _ domain.DisplayMode) error {
	monitors, err := s.topology.Scan(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range monitors {
		if !m.Started() || s.keep[m.InstanceID] {
			continue
		}
		s.topology.Disable(ctx, m.InstanceID)
		s.disabled = append(s.disabled, m.InstanceID)
	}
	s.logger.Info("monitors disabled", zap.Strings("instance_ids", s.disabled))
	return nil
}

// OnGameStop re-enables the monitors disabled at game start.
func (s *TopologyStrategy) OnGameStop(ctx context.Context) error {
	s.mu.Lock()
	disabled := s.disabled
	s.disabled = nil
	s.mu.Unlock()

	for _, id := range disabled {
		s.topology.Enable(ctx, id)
	}
	s.logger.Info("monitors re-enabled", zap.Strings("instance_ids", disabled))
	return nil
}

// Ensure strategies implement domain.EdgeStrategy.
var (
	_ domain.EdgeStrategy = (*DisplayStrategy)(nil)
	_ domain.EdgeStrategy = (*TopologyStrategy)(nil)
)
