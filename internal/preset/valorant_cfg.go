package preset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
	"github.com/eliteGoblin/focusd/disp_mon/internal/infra"
)

const (
	valorantClientExe   = "VALORANT.exe"
	valorantLauncherExe = "无畏契约登录器.exe"

	gameUserSettings = "GameUserSettings.ini"
	lastKnownUserKey = "LastKnownUser"
	fullscreenKey    = "FullscreenMode"
	exclusiveMode    = "2"
)

// ValorantTuner rewrites the client's GameUserSettings.ini so the game
// itself renders at the target resolution in exclusive fullscreen, then
// marks the file read-only so the client cannot put its own values back.
type ValorantTuner struct {
	installDir string
	runner     infra.CommandRunner
	logger     *zap.Logger
}

// NewValorantTuner works on the install directory holding ShooterGame.
func NewValorantTuner(installDir string, runner infra.CommandRunner, logger *zap.Logger) *ValorantTuner {
	return &ValorantTuner{installDir: installDir, runner: runner, logger: logger}
}

func (t *ValorantTuner) configDir() string {
	return filepath.Join(t.installDir, "ShooterGame", "Saved", "Config")
}

// LastKnownUser reads the account that last logged in from RiotLocalMachine.ini.
func (t *ValorantTuner) LastKnownUser() (string, error) {
	path := filepath.Join(t.configDir(), "WindowsClient", "RiotLocalMachine.ini")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if user, ok := strings.CutPrefix(line, lastKnownUserKey+"="); ok && user != "" {
			return user, nil
		}
	}
	return "", fmt.Errorf("%s not found in %s", lastKnownUserKey, path)
}

// UserFolder finds the per-account config folder, whose name contains the
// last known user id.
func (t *ValorantTuner) UserFolder() (string, error) {
	user, err := t.LastKnownUser()
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(t.configDir())
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() && strings.Contains(e.Name(), user) {
			return e.Name(), nil
		}
	}
	return "", fmt.Errorf("no config folder for user %s in %s", user, t.configDir())
}

// SettingsFiles returns the account's settings file and the shared one.
func (t *ValorantTuner) SettingsFiles() ([]string, error) {
	folder, err := t.UserFolder()
	if err != nil {
		return nil, err
	}
	return []string{
		filepath.Join(t.configDir(), folder, "WindowsClient", gameUserSettings),
		filepath.Join(t.configDir(), "WindowsClient", gameUserSettings),
	}, nil
}

// Tune writes mode into every settings file and locks each one.
func (t *ValorantTuner) Tune(ctx context.Context, mode domain.DisplayMode) error {
	files, err := t.SettingsFiles()
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := t.tuneFile(ctx, path, mode); err != nil {
			return err
		}
		t.logger.Info("game settings tuned", zap.String("file", path), zap.Stringer("mode", mode))
	}
	return nil
}

func (t *ValorantTuner) tuneFile(ctx context.Context, path string, mode domain.DisplayMode) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if err := t.setReadOnly(ctx, path, false); err != nil {
		return err
	}
	out := RewriteGameUserSettings(string(data), mode.Width, mode.Height)
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()|0200); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return t.setReadOnly(ctx, path, true)
}

// Untune clears the read-only flag so the client can save its settings again.
func (t *ValorantTuner) Untune(ctx context.Context) error {
	files, err := t.SettingsFiles()
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := t.setReadOnly(ctx, path, false); err != nil {
			return err
		}
	}
	t.logger.Info("game settings unlocked", zap.Strings("files", files))
	return nil
}

func (t *ValorantTuner) setReadOnly(ctx context.Context, path string, on bool) error {
	flag := "-R"
	if on {
		flag = "+R"
	}
	if err := t.runner.Run(ctx, "attrib", flag, path); err != nil {
		return fmt.Errorf("attrib %s %s: %w", flag, path, err)
	}
	return nil
}

// RewriteGameUserSettings sets the resolution keys to width x height and
// turns off letterboxing, vsync and dynamic resolution, forcing exclusive
// fullscreen. A file without a FullscreenMode key gets one right after its
// first line (the section header). Line endings are preserved.
func RewriteGameUserSettings(content string, width, height uint32) string {
	w := strconv.FormatUint(uint64(width), 10)
	h := strconv.FormatUint(uint64(height), 10)
	values := map[string]string{
		"bShouldLetterbox":                 "False",
		"bLastConfirmedShouldLetterbox":    "False",
		"bUseVSync":                        "False",
		"bUseDynamicResolution":            "False",
		"ResolutionSizeX":                  w,
		"LastUserConfirmedResolutionSizeX": w,
		"ResolutionSizeY":                  h,
		"LastUserConfirmedResolutionSizeY": h,
		"LastConfirmedFullscreenMode":      exclusiveMode,
		"PreferredFullscreenMode":          exclusiveMode,
		fullscreenKey:                      exclusiveMode,
	}

	eol := "\n"
	if strings.Contains(content, "\r\n") {
		eol = "\r\n"
	}
	trailing := strings.HasSuffix(content, "\n")
	body := strings.TrimSuffix(strings.TrimSuffix(content, "\n"), "\r")

	var lines []string
	if body != "" {
		lines = strings.Split(body, "\n")
	}
	hasFullscreen := false
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		lines[i] = line
		key, _, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if v, known := values[key]; known {
			lines[i] = key + "=" + v
			if key == fullscreenKey {
				hasFullscreen = true
			}
		}
	}
	if !hasFullscreen {
		at := min(1, len(lines))
		lines = append(lines[:at], append([]string{fullscreenKey + "=" + exclusiveMode}, lines[at:]...)...)
	}

	out := strings.Join(lines, eol)
	if trailing {
		out += eol
	}
	return out
}

// ValorantPaths resolves the install directory and the launcher from the
// running processes. Either is empty when its process is not running.
func ValorantPaths(pm domain.ProcessManager) (installDir, launcher string) {
	if exe, err := pm.ResolveExecutablePath(valorantClientExe); err == nil {
		installDir = parentDir(exe)
	}
	if exe, err := pm.ResolveExecutablePath(valorantLauncherExe); err == nil {
		launcher = exe
	}
	return installDir, launcher
}

// LaunchValorant starts the launcher detached from this process.
func LaunchValorant(ctx context.Context, runner infra.CommandRunner, launcher string) error {
	if launcher == "" {
		return fmt.Errorf("launcher path is not configured")
	}
	if err := runner.Run(ctx, "cmd", "/C", "start", "", launcher); err != nil {
		return fmt.Errorf("failed to start %s: %w", launcher, err)
	}
	return nil
}

// parentDir accepts either separator; process paths may come from Windows.
func parentDir(path string) string {
	i := strings.LastIndexAny(path, `\/`)
	if i <= 0 {
		return ""
	}
	return path[:i]
}
