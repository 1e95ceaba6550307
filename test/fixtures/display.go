package fixtures

import (
	"context"
	"maps"
	"sync"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// DisplayCall is one recorded display operation.
type DisplayCall struct {
	Op        string // "change" or "restore"
	Mode      domain.DisplayMode
	Permanent bool
}

// RecordingDisplay is an in-memory display controller that records calls.
type RecordingDisplay struct {
	mu        sync.Mutex
	defaults  domain.DisplayMode
	current   domain.DisplayMode
	monitors  map[string]string
	calls     []DisplayCall
	changeErr error
}

// NewRecordingDisplay creates a display showing defaults on two outputs.
func NewRecordingDisplay(defaults domain.DisplayMode) *RecordingDisplay {
	return &RecordingDisplay{
		defaults: defaults,
		current:  defaults,
		monitors: map[string]string{
			`\\.\DISPLAY1`: "NVIDIA GeForce RTX 4070",
			`\\.\DISPLAY2`: "NVIDIA GeForce RTX 4070",
		},
	}
}

// FailChanges makes every subsequent change fail with err (nil clears it).
func (d *RecordingDisplay) FailChanges(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changeErr = err
}

// Calls returns a copy of the recorded calls.
func (d *RecordingDisplay) Calls() []DisplayCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DisplayCall(nil), d.calls...)
}

// Current returns the mode currently applied.
func (d *RecordingDisplay) Current() domain.DisplayMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *RecordingDisplay) CurrentMode() (domain.DisplayMode, error) {
	return d.Current(), nil
}

func (d *RecordingDisplay) Modes() ([]domain.DisplayMode, error) {
	return []domain.DisplayMode{d.defaults}, nil
}

func (d *RecordingDisplay) Monitors() (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.monitors), nil
}

func (d *RecordingDisplay) ChangeMode(mode domain.DisplayMode, permanent bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.changeErr != nil {
		return d.changeErr
	}
	d.calls = append(d.calls, DisplayCall{Op: "change", Mode: mode, Permanent: permanent})
	d.current = mode
	if permanent {
		d.defaults = mode
	}
	return nil
}

func (d *RecordingDisplay) ChangeModeForMonitor(deviceName string, mode domain.DisplayMode, permanent bool) error {
	return d.ChangeMode(mode.WithMonitor(deviceName), permanent)
}

func (d *RecordingDisplay) RestoreDefaults() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, DisplayCall{Op: "restore"})
	d.current = d.defaults
	return nil
}

var _ domain.DisplayController = (*RecordingDisplay)(nil)

// RecordingTopology is an in-memory device tool.
type RecordingTopology struct {
	mu      sync.Mutex
	devices []domain.DeviceMonitor
	log     []string
}

// NewRecordingTopology creates a tool reporting the given devices as started.
func NewRecordingTopology(instanceIDs ...string) *RecordingTopology {
	t := &RecordingTopology{}
	for _, id := range instanceIDs {
		t.devices = append(t.devices, domain.DeviceMonitor{InstanceID: id, Status: domain.DeviceStatusStarted})
	}
	return t
}

func (t *RecordingTopology) Scan(ctx context.Context) ([]domain.DeviceMonitor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.DeviceMonitor(nil), t.devices...), nil
}

func (t *RecordingTopology) Disable(ctx context.Context, instanceID string) {
	t.set(instanceID, "Disabled")
	t.record("disable " + instanceID)
}

func (t *RecordingTopology) Enable(ctx context.Context, instanceID string) {
	t.set(instanceID, domain.DeviceStatusStarted)
	t.record("enable " + instanceID)
}

// Log returns the enable/disable requests in order.
func (t *RecordingTopology) Log() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.log...)
}

// Started returns the IDs of started devices.
func (t *RecordingTopology) Started() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []string
	for _, d := range t.devices {
		if d.Started() {
			ids = append(ids, d.InstanceID)
		}
	}
	return ids
}

func (t *RecordingTopology) set(instanceID, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.devices {
		if t.devices[i].InstanceID == instanceID {
			t.devices[i].Status = status
		}
	}
}

func (t *RecordingTopology) record(entry string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log = append(t.log, entry)
}

var _ domain.TopologyController = (*RecordingTopology)(nil)
