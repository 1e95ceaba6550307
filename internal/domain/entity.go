// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DisplayMode is a resolution/refresh-rate target for one output.
// A zero BitsPerPixel keeps the current color depth.
// An empty MonitorName targets the primary output.
type DisplayMode struct {
	Width        uint32 `json:"width"`
	Height       uint32 `json:"height"`
	RefreshRate  uint32 `json:"refresh_rate"`
	BitsPerPixel uint32 `json:"bits_per_pixel,omitempty"`
	MonitorName  string `json:"monitor_name,omitempty"`
}

// String renders the mode as 1920x1080@144Hz.
func (m DisplayMode) String() string {
	s := fmt.Sprintf("%dx%d@%dHz", m.Width, m.Height, m.RefreshRate)
	if m.BitsPerPixel != 0 {
		s += fmt.Sprintf(" (%d bit)", m.BitsPerPixel)
	}
	if m.MonitorName != "" {
		s += " on " + m.MonitorName
	}
	return s
}

// SameResolution reports whether width, height and refresh rate match.
func (m DisplayMode) SameResolution(o DisplayMode) bool {
	return m.Width == o.Width && m.Height == o.Height && m.RefreshRate == o.RefreshRate
}

// WithMonitor returns a copy of m bound to the named output.
func (m DisplayMode) WithMonitor(name string) DisplayMode {
	m.MonitorName = name
	return m
}

// ParseDisplayMode parses "WIDTHxHEIGHT[@RATE]". A missing rate means 0 (driver default).
func ParseDisplayMode(s string) (DisplayMode, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "hz")
	res, rate, hasRate := strings.Cut(s, "@")
	w, h, ok := strings.Cut(res, "x")
	if !ok {
		return DisplayMode{}, fmt.Errorf("invalid display mode %q: want WIDTHxHEIGHT[@RATE]", s)
	}

	width, err := strconv.ParseUint(strings.TrimSpace(w), 10, 32)
	if err != nil || width == 0 {
		return DisplayMode{}, fmt.Errorf("invalid width in %q", s)
	}
	height, err := strconv.ParseUint(strings.TrimSpace(h), 10, 32)
	if err != nil || height == 0 {
		return DisplayMode{}, fmt.Errorf("invalid height in %q", s)
	}

	mode := DisplayMode{Width: uint32(width), Height: uint32(height)}
	if hasRate {
		r, err := strconv.ParseUint(strings.TrimSpace(rate), 10, 32)
		if err != nil {
			return DisplayMode{}, fmt.Errorf("invalid refresh rate in %q", s)
		}
		mode.RefreshRate = uint32(r)
	}
	return mode, nil
}

// DeviceStatusStarted marks an enabled, active device in the device tool output.
const DeviceStatusStarted = "Started"

// DeviceMonitor is a monitor device as seen by the device-management tool.
type DeviceMonitor struct {
	InstanceID string `json:"instance_id"`
	Status     string `json:"status"`
}

// Started reports whether the device is enabled and active.
func (d DeviceMonitor) Started() bool {
	return d.Status == DeviceStatusStarted
}

// MatchKind selects how a ProcessTarget is compared with live processes.
type MatchKind string

const (
	// MatchPath compares the full executable path, case-sensitively.
	MatchPath MatchKind = "path"
	// MatchName compares the executable name, case-insensitively.
	MatchName MatchKind = "name"
)

// ProcessTarget identifies the watched game process.
type ProcessTarget struct {
	Value string
	Match MatchKind
}

// NewProcessTarget infers the match kind: anything containing a path
// separator is an executable path, a bare name is matched by name.
func NewProcessTarget(s string) ProcessTarget {
	if strings.ContainsAny(s, `/\`) {
		return ProcessTarget{Value: s, Match: MatchPath}
	}
	return ProcessTarget{Value: s, Match: MatchName}
}

func (t ProcessTarget) String() string {
	return t.Value
}

// StrategyKind names a reconfiguration strategy.
type StrategyKind string

const (
	StrategyDisplay  StrategyKind = "display"
	StrategyTopology StrategyKind = "topology"
)

// WatcherSettings is what the configuration collaborator hands to the core
// when a watcher is constructed.
type WatcherSettings struct {
	GamePath      string
	Mode          DisplayMode
	Strategy      StrategyKind
	Permanent     bool          // persist the game mode as the OS default
	PollInterval  time.Duration // 0 uses the watcher default
	RestoreOnStop bool          // run one final stop action when cancelled mid-session
	KeepDevices   []string      // topology strategy: instance IDs never disabled
}

// EdgeKind is the direction of a process state transition.
type EdgeKind string

const (
	EdgeStarted EdgeKind = "started"
	EdgeStopped EdgeKind = "stopped"
)

// SessionEvent records one edge and what the strategy did about it.
type SessionEvent struct {
	ID       int64     `json:"id"`
	Kind     EdgeKind  `json:"kind"`
	Process  string    `json:"process"`
	Strategy string    `json:"strategy"`
	Mode     string    `json:"mode,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Instance describes a running `run` process for single-instance checks
// and for locating its control API.
type Instance struct {
	PID         int    `json:"pid"`
	ControlAddr string `json:"control_addr"`
	Version     string `json:"version"`
	StartedAt   int64  `json:"started_at"`
}
