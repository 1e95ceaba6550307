package display

import (
	"sort"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// Controller implements domain.DisplayController on top of an API backend.
type Controller struct {
	api    API
	logger *zap.Logger
}

// NewController creates a controller over the given backend.
func NewController(api API, logger *zap.Logger) *Controller {
	return &Controller{api: api, logger: logger}
}

// New creates a controller over this platform's display API. stateDir
// holds backend state that must outlive the process.
func New(logger *zap.Logger, stateDir string) (*Controller, error) {
	api, err := NewSystemAPI(stateDir)
	if err != nil {
		return nil, err
	}
	return NewController(api, logger), nil
}

// CurrentMode reads the active mode of the primary output.
func (c *Controller) CurrentMode() (domain.DisplayMode, error) {
	s, ok := c.api.CurrentSettings("")
	if !ok {
		return domain.DisplayMode{}, domain.ErrEnumFailed
	}
	return toMode(s), nil
}

// CurrentModeForMonitor reads the active mode of one named output.
func (c *Controller) CurrentModeForMonitor(deviceName string) (domain.DisplayMode, error) {
	s, ok := c.api.CurrentSettings(deviceName)
	if !ok {
		return domain.DisplayMode{}, domain.ErrEnumFailed
	}
	return toMode(s).WithMonitor(deviceName), nil
}

// Modes lists every mode the primary adapter advertises.
// Duplicates by (width, height, refresh, depth) are dropped and the result is
// ordered highest resolution and rate first; ties keep enumeration order.
func (c *Controller) Modes() ([]domain.DisplayMode, error) {
	seen := make(map[Settings]bool)
	var modes []domain.DisplayMode

	for i := uint32(0); ; i++ {
		s, ok := c.api.EnumSettings("", i)
		if !ok {
			break
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		modes = append(modes, toMode(s))
	}

	if len(modes) == 0 {
		return nil, domain.ErrEnumFailed
	}

	sort.SliceStable(modes, func(i, j int) bool {
		a, b := modes[i], modes[j]
		if a.Width != b.Width {
			return a.Width > b.Width
		}
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		return a.RefreshRate > b.RefreshRate
	})
	return modes, nil
}

// Match finds the advertised mode with the same resolution as want.
// A zero refresh rate in want picks the highest rate for that resolution.
func (c *Controller) Match(want domain.DisplayMode) (domain.DisplayMode, error) {
	modes, err := c.Modes()
	if err != nil {
		return domain.DisplayMode{}, err
	}
	for _, m := range modes {
		if m.Width != want.Width || m.Height != want.Height {
			continue
		}
		if want.RefreshRate != 0 && m.RefreshRate != want.RefreshRate {
			continue
		}
		if want.BitsPerPixel != 0 && m.BitsPerPixel != want.BitsPerPixel {
			continue
		}
		return m.WithMonitor(want.MonitorName), nil
	}
	return domain.DisplayMode{}, domain.ErrModeNotFound
}

// Monitors walks the display devices and keeps the active ones,
// keyed by device name with the adapter description as value.
// An empty map means no active output.
func (c *Controller) Monitors() (map[string]string, error) {
	monitors := make(map[string]string)
	for i := uint32(0); ; i++ {
		d, ok := c.api.EnumDevices(i)
		if !ok {
			break
		}
		if !d.Active {
			c.logger.Debug("skipping inactive display device", zap.String("device", d.Name))
			continue
		}
		monitors[d.Name] = d.Description
	}
	return monitors, nil
}

// ChangeMode applies mode to the primary output.
func (c *Controller) ChangeMode(mode domain.DisplayMode, permanent bool) error {
	return c.change("", mode, permanent)
}

// ChangeModeForMonitor applies mode to one named output only.
func (c *Controller) ChangeModeForMonitor(deviceName string, mode domain.DisplayMode, permanent bool) error {
	return c.change(deviceName, mode, permanent)
}

// change is a two-phase commit: the mode is first validated with FlagTest
// and only applied when the driver accepts it. A failed test leaves the
// display untouched.
func (c *Controller) change(device string, mode domain.DisplayMode, permanent bool) error {
	s := Settings{
		Width:        mode.Width,
		Height:       mode.Height,
		RefreshRate:  mode.RefreshRate,
		BitsPerPixel: mode.BitsPerPixel,
	}

	if r := c.api.ChangeSettings(device, &s, FlagTest); r != ResultSuccessful {
		c.logger.Warn("display mode rejected by test",
			zap.String("device", device),
			zap.Stringer("mode", mode),
			zap.Int32("code", int32(r)))
		return &domain.ChangeFailedError{Phase: domain.PhaseTest, Reason: domain.ReasonTestRejected, Code: int32(r)}
	}

	flags := FlagTemporary
	if permanent {
		flags = FlagUpdateRegistry
	}

	r := c.api.ChangeSettings(device, &s, flags)
	if r != ResultSuccessful {
		return &domain.ChangeFailedError{Phase: domain.PhaseCommit, Reason: reasonFor(r), Code: int32(r)}
	}

	c.logger.Info("display mode changed",
		zap.String("device", device),
		zap.Stringer("mode", mode),
		zap.Bool("permanent", permanent))
	return nil
}

// RestoreDefaults reverts every output to the OS-stored configuration.
func (c *Controller) RestoreDefaults() error {
	r := c.api.ChangeSettings("", nil, FlagTemporary)
	if r != ResultSuccessful {
		return &domain.ChangeFailedError{Phase: domain.PhaseRestore, Reason: reasonFor(r), Code: int32(r)}
	}
	c.logger.Info("display defaults restored")
	return nil
}

func reasonFor(r Result) domain.ChangeReason {
	switch r {
	case ResultRestart:
		return domain.ReasonRestartRequired
	case ResultBadMode:
		return domain.ReasonBadMode
	case ResultFailed:
		return domain.ReasonDriverFailed
	default:
		return domain.ReasonUnknown
	}
}

func toMode(s Settings) domain.DisplayMode {
	return domain.DisplayMode{
		Width:        s.Width,
		Height:       s.Height,
		RefreshRate:  s.RefreshRate,
		BitsPerPixel: s.BitsPerPixel,
	}
}

// Ensure Controller implements domain.DisplayController.
var _ domain.DisplayController = (*Controller)(nil)
