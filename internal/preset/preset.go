// Package preset knows the process names of common games so their
// executable path can be detected while they run.
package preset

import (
	"errors"
	"fmt"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// Preset describes one known game.
type Preset interface {
	// ID returns unique identifier (e.g., "valorant", "cs2").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// ProcessNames returns executable names, game client first.
	// Names are matched case-insensitively.
	ProcessNames() []string

	// Strategy returns the reconfiguration usually paired with the game.
	Strategy() domain.StrategyKind
}

// Detect resolves the executable path of the first running process of p.
func Detect(p Preset, pm domain.ProcessManager) (string, error) {
	for _, name := range p.ProcessNames() {
		path, err := pm.ResolveExecutablePath(name)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, domain.ErrProcessNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s is not running", domain.ErrProcessNotFound, p.Name())
}
