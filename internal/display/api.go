// Package display controls the OS display configuration.
//
// Controller holds the platform-independent rules (two-phase change,
// mode de-duplication and ordering, active-output filtering). The OS
// specifics live behind API, implemented per platform.
package display

// Result is the outcome code of a settings change, numbered like the
// Windows DISP_CHANGE_* values so every backend reports the same codes.
type Result int32

const (
	ResultSuccessful  Result = 0
	ResultRestart     Result = 1
	ResultFailed      Result = -1
	ResultBadMode     Result = -2
	ResultNotUpdated  Result = -3
	ResultBadFlags    Result = -4
	ResultBadParam    Result = -5
	ResultBadDualView Result = -6
)

// ChangeFlags selects how a settings change is applied.
type ChangeFlags uint32

const (
	// FlagTemporary applies the change for the session only.
	FlagTemporary ChangeFlags = 0
	// FlagUpdateRegistry applies the change and persists it as the default.
	FlagUpdateRegistry ChangeFlags = 0x1
	// FlagTest validates the change without applying it.
	FlagTest ChangeFlags = 0x2
)

// Settings is the subset of a device mode the controller reads and writes.
// BitsPerPixel 0 leaves the color depth unchanged.
type Settings struct {
	Width        uint32
	Height       uint32
	RefreshRate  uint32
	BitsPerPixel uint32
}

// Device is one display output reported by the OS.
type Device struct {
	Name        string
	Description string
	Active      bool
	Primary     bool
}

// API is the narrow OS boundary. An empty device name means the primary output.
type API interface {
	// CurrentSettings returns the active mode of a device.
	CurrentSettings(device string) (Settings, bool)

	// EnumSettings returns the index-th advertised mode, false past the end.
	EnumSettings(device string, index uint32) (Settings, bool)

	// EnumDevices returns the index-th display device, false past the end.
	EnumDevices(index uint32) (Device, bool)

	// ChangeSettings applies s to device. A nil s restores the stored defaults.
	ChangeSettings(device string, s *Settings, flags ChangeFlags) Result
}
