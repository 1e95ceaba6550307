//go:build linux

package display

import (
	"fmt"
	"math"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
)

// crtcConfig is a CRTC's layout in server ids.
type crtcConfig struct {
	x        int16
	y        int16
	mode     randr.Mode
	rotation uint16
	outputs  []randr.Output
}

// randrAPI drives an X11 server through the RandR extension.
// X has no persistent mode store, so the layout found before the first
// outstanding change is kept in a LayoutFile and plays the role of the
// stored defaults. FlagUpdateRegistry rewrites the affected entry.
type randrAPI struct {
	mu     sync.Mutex
	conn   *xgb.Conn
	root   xproto.Window
	depth  uint32
	layout *LayoutFile
}

// NewSystemAPI connects to $DISPLAY. The pre-change layout is persisted
// under stateDir so restore works from any process.
func NewSystemAPI(stateDir string) (API, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("randr extension unavailable: %w", err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)
	return &randrAPI{
		conn:   conn,
		root:   screen.Root,
		depth:  uint32(screen.RootDepth),
		layout: NewLayoutFileIn(stateDir),
	}, nil
}

// snapshot describes every active CRTC by output names and mode geometry.
func (a *randrAPI) snapshot(res *randr.GetScreenResourcesReply) []SavedCrtc {
	modes := modeTable(res)
	var layout []SavedCrtc
	for _, crtc := range res.Crtcs {
		info, err := randr.GetCrtcInfo(a.conn, crtc, res.ConfigTimestamp).Reply()
		if err != nil || info.Mode == 0 {
			continue
		}
		if saved, ok := a.describe(res, modes, crtcConfig{x: info.X, y: info.Y, mode: info.Mode, rotation: info.Rotation, outputs: info.Outputs}); ok {
			layout = append(layout, saved)
		}
	}
	return layout
}

func (a *randrAPI) describe(res *randr.GetScreenResourcesReply, modes map[randr.Mode]randr.ModeInfo, cfg crtcConfig) (SavedCrtc, bool) {
	mi, ok := modes[cfg.mode]
	if !ok {
		return SavedCrtc{}, false
	}
	saved := SavedCrtc{
		X:           cfg.x,
		Y:           cfg.y,
		Width:       mi.Width,
		Height:      mi.Height,
		RefreshRate: refreshRate(mi),
		Rotation:    cfg.rotation,
	}
	for _, out := range cfg.outputs {
		info, err := randr.GetOutputInfo(a.conn, out, res.ConfigTimestamp).Reply()
		if err != nil {
			return SavedCrtc{}, false
		}
		saved.Outputs = append(saved.Outputs, string(info.Name))
	}
	return saved, len(saved.Outputs) > 0
}

// resolve maps a saved entry back to server ids on this connection.
func (a *randrAPI) resolve(res *randr.GetScreenResourcesReply, modes map[randr.Mode]randr.ModeInfo, saved SavedCrtc) (randr.Crtc, crtcConfig, bool) {
	byName := make(map[string]randr.Output, len(res.Outputs))
	infos := make(map[randr.Output]*randr.GetOutputInfoReply, len(res.Outputs))
	for _, out := range res.Outputs {
		info, err := randr.GetOutputInfo(a.conn, out, res.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		byName[string(info.Name)] = out
		infos[out] = info
	}

	cfg := crtcConfig{x: saved.X, y: saved.Y, rotation: saved.Rotation}
	for _, name := range saved.Outputs {
		out, ok := byName[name]
		if !ok {
			return 0, crtcConfig{}, false
		}
		cfg.outputs = append(cfg.outputs, out)
	}

	if len(cfg.outputs) == 0 {
		return 0, crtcConfig{}, false
	}
	lead := infos[cfg.outputs[0]]
	crtc := lead.Crtc
	if crtc == 0 {
		if len(lead.Crtcs) == 0 {
			return 0, crtcConfig{}, false
		}
		crtc = lead.Crtcs[0]
	}
	for _, id := range lead.Modes {
		mi := modes[id]
		if mi.Width == saved.Width && mi.Height == saved.Height && refreshRate(mi) == saved.RefreshRate {
			cfg.mode = id
			return crtc, cfg, true
		}
	}
	return 0, crtcConfig{}, false
}

func (a *randrAPI) resources() (*randr.GetScreenResourcesReply, error) {
	return randr.GetScreenResources(a.conn, a.root).Reply()
}

// refreshRate derives the vertical refresh in whole Hz from the mode timings.
func refreshRate(mi randr.ModeInfo) uint32 {
	if mi.Htotal == 0 || mi.Vtotal == 0 {
		return 0
	}
	return uint32(math.Round(float64(mi.DotClock) / (float64(mi.Htotal) * float64(mi.Vtotal))))
}

func (a *randrAPI) settingsOf(mi randr.ModeInfo) Settings {
	return Settings{
		Width:        uint32(mi.Width),
		Height:       uint32(mi.Height),
		RefreshRate:  refreshRate(mi),
		BitsPerPixel: a.depth,
	}
}

func modeTable(res *randr.GetScreenResourcesReply) map[randr.Mode]randr.ModeInfo {
	table := make(map[randr.Mode]randr.ModeInfo, len(res.Modes))
	for _, mi := range res.Modes {
		table[randr.Mode(mi.Id)] = mi
	}
	return table
}

// output resolves a device name to an output. "" is the primary output, or
// the first connected output driving a CRTC when no primary is set.
func (a *randrAPI) output(res *randr.GetScreenResourcesReply, device string) (randr.Output, *randr.GetOutputInfoReply, bool) {
	if device == "" {
		if p, err := randr.GetOutputPrimary(a.conn, a.root).Reply(); err == nil && p.Output != 0 {
			if info, err := randr.GetOutputInfo(a.conn, p.Output, res.ConfigTimestamp).Reply(); err == nil {
				return p.Output, info, true
			}
		}
	}
	for _, out := range res.Outputs {
		info, err := randr.GetOutputInfo(a.conn, out, res.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		if device == "" {
			if info.Connection == randr.ConnectionConnected && info.Crtc != 0 {
				return out, info, true
			}
			continue
		}
		if string(info.Name) == device {
			return out, info, true
		}
	}
	return 0, nil, false
}

func (a *randrAPI) CurrentSettings(device string) (Settings, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, err := a.resources()
	if err != nil {
		return Settings{}, false
	}
	_, info, ok := a.output(res, device)
	if !ok || info.Crtc == 0 {
		return Settings{}, false
	}
	crtc, err := randr.GetCrtcInfo(a.conn, info.Crtc, res.ConfigTimestamp).Reply()
	if err != nil {
		return Settings{}, false
	}
	mi, ok := modeTable(res)[crtc.Mode]
	if !ok {
		return Settings{}, false
	}
	return a.settingsOf(mi), true
}

func (a *randrAPI) EnumSettings(device string, index uint32) (Settings, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, err := a.resources()
	if err != nil {
		return Settings{}, false
	}
	_, info, ok := a.output(res, device)
	if !ok || int(index) >= len(info.Modes) {
		return Settings{}, false
	}
	mi, ok := modeTable(res)[info.Modes[index]]
	if !ok {
		return Settings{}, false
	}
	return a.settingsOf(mi), true
}

func (a *randrAPI) EnumDevices(index uint32) (Device, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, err := a.resources()
	if err != nil || int(index) >= len(res.Outputs) {
		return Device{}, false
	}
	out := res.Outputs[index]
	info, err := randr.GetOutputInfo(a.conn, out, res.ConfigTimestamp).Reply()
	if err != nil {
		return Device{}, false
	}

	var primary randr.Output
	if p, err := randr.GetOutputPrimary(a.conn, a.root).Reply(); err == nil {
		primary = p.Output
	}

	desc := "disconnected"
	if info.Connection == randr.ConnectionConnected {
		desc = fmt.Sprintf("%dmm x %dmm", info.MmWidth, info.MmHeight)
	}
	return Device{
		Name:        string(info.Name),
		Description: desc,
		Active:      info.Connection == randr.ConnectionConnected && info.Crtc != 0,
		Primary:     out == primary,
	}, true
}

func (a *randrAPI) ChangeSettings(device string, s *Settings, flags ChangeFlags) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, err := a.resources()
	if err != nil {
		return ResultFailed
	}
	if s == nil {
		return a.restore(res)
	}

	out, info, ok := a.output(res, device)
	if !ok {
		return ResultBadParam
	}

	modes := modeTable(res)
	var target randr.Mode
	var targetInfo randr.ModeInfo
	for _, id := range info.Modes {
		mi := modes[id]
		if uint32(mi.Width) != s.Width || uint32(mi.Height) != s.Height {
			continue
		}
		if s.RefreshRate != 0 && refreshRate(mi) != s.RefreshRate {
			continue
		}
		target, targetInfo = id, mi
		break
	}
	if target == 0 {
		return ResultBadMode
	}
	if s.BitsPerPixel != 0 && s.BitsPerPixel != a.depth {
		return ResultBadMode
	}
	if flags&FlagTest != 0 {
		return ResultSuccessful
	}
	if info.Crtc == 0 {
		return ResultBadParam
	}

	crtc, err := randr.GetCrtcInfo(a.conn, info.Crtc, res.ConfigTimestamp).Reply()
	if err != nil {
		return ResultFailed
	}
	outputs := crtc.Outputs
	if len(outputs) == 0 {
		outputs = []randr.Output{out}
	}
	cfg := crtcConfig{x: crtc.X, y: crtc.Y, mode: target, rotation: crtc.Rotation, outputs: outputs}

	// keep the layout as it was before the first outstanding change
	if _, err := a.layout.SaveIfAbsent(a.snapshot(res)); err != nil {
		return ResultNotUpdated
	}
	if err := a.growScreen(int(crtc.X)+int(targetInfo.Width), int(crtc.Y)+int(targetInfo.Height)); err != nil {
		return ResultFailed
	}
	if r := a.apply(info.Crtc, res.ConfigTimestamp, cfg); r != ResultSuccessful {
		return r
	}
	if flags&FlagUpdateRegistry != 0 {
		if saved, ok := a.describe(res, modes, cfg); ok {
			if err := a.layout.Update(saved); err != nil {
				return ResultNotUpdated
			}
		}
	}
	return ResultSuccessful
}

// restore re-applies the stored layout and drops it. With no snapshot no
// change is outstanding and there is nothing to do.
func (a *randrAPI) restore(res *randr.GetScreenResourcesReply) Result {
	layout, err := a.layout.Load()
	if err != nil {
		return ResultFailed
	}
	modes := modeTable(res)
	for _, saved := range layout {
		crtc, cfg, ok := a.resolve(res, modes, saved)
		if !ok {
			return ResultBadParam
		}
		if err := a.growScreen(int(cfg.x)+int(saved.Width), int(cfg.y)+int(saved.Height)); err != nil {
			return ResultFailed
		}
		if r := a.apply(crtc, res.ConfigTimestamp, cfg); r != ResultSuccessful {
			return r
		}
	}
	if err := a.layout.Clear(); err != nil {
		return ResultNotUpdated
	}
	return ResultSuccessful
}

func (a *randrAPI) apply(crtc randr.Crtc, ts xproto.Timestamp, cfg crtcConfig) Result {
	reply, err := randr.SetCrtcConfig(a.conn, crtc, xproto.TimeCurrentTime, ts,
		cfg.x, cfg.y, cfg.mode, cfg.rotation, cfg.outputs).Reply()
	if err != nil || reply.Status != randr.SetConfigSuccess {
		return ResultFailed
	}
	return ResultSuccessful
}

// growScreen enlarges the X screen when a CRTC would extend past it.
func (a *randrAPI) growScreen(width, height int) error {
	geom, err := xproto.GetGeometry(a.conn, xproto.Drawable(a.root)).Reply()
	if err != nil {
		return err
	}
	if width <= int(geom.Width) && height <= int(geom.Height) {
		return nil
	}
	width = max(width, int(geom.Width))
	height = max(height, int(geom.Height))
	mmW := uint32(float64(width) * 25.4 / 96)
	mmH := uint32(float64(height) * 25.4 / 96)
	return randr.SetScreenSizeChecked(a.conn, a.root, uint16(width), uint16(height), mmW, mmH).Check()
}
