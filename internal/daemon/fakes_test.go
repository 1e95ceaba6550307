package daemon

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// scriptedProcesses returns the next scripted sample on each call and
// repeats the last one once the script is exhausted.
type scriptedProcesses struct {
	mu     sync.Mutex
	script []bool
	calls  int
}

func newScriptedProcesses(script ...bool) *scriptedProcesses {
	return &scriptedProcesses{script: script}
}

func (s *scriptedProcesses) IsTargetRunning(domain.ProcessTarget) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	return s.script[i], nil
}

func (s *scriptedProcesses) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedProcesses) FindByName(string) ([]int, error)             { return nil, nil }
func (s *scriptedProcesses) ResolveExecutablePath(string) (string, error) { return "", nil }
func (s *scriptedProcesses) IsRunning(int) bool                           { return false }
func (s *scriptedProcesses) GetCurrentPID() int                           { return 1 }

// switchProcesses reports whatever the test sets.
type switchProcesses struct {
	present atomic.Bool
	fail    atomic.Bool
	calls   atomic.Int64
}

func (s *switchProcesses) IsTargetRunning(domain.ProcessTarget) (bool, error) {
	s.calls.Add(1)
	if s.fail.Load() {
		return false, errors.New("snapshot failed")
	}
	return s.present.Load(), nil
}

func (s *switchProcesses) FindByName(string) ([]int, error)             { return nil, nil }
func (s *switchProcesses) ResolveExecutablePath(string) (string, error) { return "", nil }
func (s *switchProcesses) IsRunning(int) bool                           { return false }
func (s *switchProcesses) GetCurrentPID() int                           { return 1 }

// recordingStrategy counts edge actions and remembers the modes applied.
type recordingStrategy struct {
	mu     sync.Mutex
	starts []domain.DisplayMode
	stops  int
	err    error
}

func (r *recordingStrategy) Name() string { return "recording" }

func (r *recordingStrategy) OnGameStart(_ context.Context, mode domain.DisplayMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, mode)
	return r.err
}

func (r *recordingStrategy) OnGameStop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return r.err
}

func (r *recordingStrategy) Counts() (starts, stops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.starts), r.stops
}

func (r *recordingStrategy) LastStart() domain.DisplayMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.starts) == 0 {
		return domain.DisplayMode{}
	}
	return r.starts[len(r.starts)-1]
}

// recordingDisplay is a DisplayController that records calls.
type recordingDisplay struct {
	mu         sync.Mutex
	changes    []domain.DisplayMode
	devices    []string
	permanent  []bool
	restores   int
	changeErr  error
	restoreErr error
}

func (d *recordingDisplay) CurrentMode() (domain.DisplayMode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.changes) == 0 {
		return domain.DisplayMode{Width: 2560, Height: 1440, RefreshRate: 165}, nil
	}
	return d.changes[len(d.changes)-1], nil
}

func (d *recordingDisplay) Modes() ([]domain.DisplayMode, error) { return nil, nil }

func (d *recordingDisplay) Monitors() (map[string]string, error) {
	return map[string]string{`\\.\DISPLAY1`: "Primary"}, nil
}

func (d *recordingDisplay) ChangeMode(mode domain.DisplayMode, permanent bool) error {
	return d.ChangeModeForMonitor("", mode, permanent)
}

func (d *recordingDisplay) ChangeModeForMonitor(device string, mode domain.DisplayMode, permanent bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes = append(d.changes, mode)
	d.devices = append(d.devices, device)
	d.permanent = append(d.permanent, permanent)
	return d.changeErr
}

func (d *recordingDisplay) RestoreDefaults() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restores++
	return d.restoreErr
}

// recordingTopology is a TopologyController with a fixed scan result.
type recordingTopology struct {
	mu       sync.Mutex
	monitors []domain.DeviceMonitor
	scanErr  error
	disabled []string
	enabled  []string
}

func (t *recordingTopology) Scan(context.Context) ([]domain.DeviceMonitor, error) {
	if t.scanErr != nil {
		return []domain.DeviceMonitor{}, t.scanErr
	}
	return t.monitors, nil
}

func (t *recordingTopology) Disable(_ context.Context, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = append(t.disabled, id)
}

func (t *recordingTopology) Enable(_ context.Context, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = append(t.enabled, id)
}

// memoryHistory keeps recorded events in memory.
type memoryHistory struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (h *memoryHistory) Record(e domain.SessionEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return nil
}

func (h *memoryHistory) Recent(limit int) ([]domain.SessionEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.SessionEvent(nil), h.events...), nil
}

func (h *memoryHistory) Close() error { return nil }

func (h *memoryHistory) Events() []domain.SessionEvent {
	events, _ := h.Recent(0)
	return events
}

// slowStrategy holds every action for delay and tracks the peak number
// of actions in flight across all watchers sharing it.
type slowStrategy struct {
	delay    time.Duration
	inFlight atomic.Int64
	peak     atomic.Int64
	calls    atomic.Int64
}

func (s *slowStrategy) Name() string { return "slow" }

func (s *slowStrategy) OnGameStart(context.Context, domain.DisplayMode) error {
	s.enter()
	return nil
}

func (s *slowStrategy) OnGameStop(context.Context) error {
	s.enter()
	return nil
}

func (s *slowStrategy) enter() {
	n := s.inFlight.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	s.calls.Add(1)
	time.Sleep(s.delay)
	s.inFlight.Add(-1)
}
