//go:build windows

package display

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	enumCurrentSettings = 0xFFFFFFFF

	dmBitsPerPel       = 0x00040000
	dmPelsWidth        = 0x00080000
	dmPelsHeight       = 0x00100000
	dmDisplayFrequency = 0x00400000

	displayDeviceActive  = 0x00000001
	displayDevicePrimary = 0x00000004
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procEnumDisplaySettingsW     = user32.NewProc("EnumDisplaySettingsW")
	procEnumDisplayDevicesW      = user32.NewProc("EnumDisplayDevicesW")
	procChangeDisplaySettingsExW = user32.NewProc("ChangeDisplaySettingsExW")
)

// devModeW mirrors DEVMODEW for display devices (220 bytes).
type devModeW struct {
	DeviceName         [32]uint16
	SpecVersion        uint16
	DriverVersion      uint16
	Size               uint16
	DriverExtra        uint16
	Fields             uint32
	PositionX          int32
	PositionY          int32
	DisplayOrientation uint32
	DisplayFixedOutput uint32
	Color              int16
	Duplex             int16
	YResolution        int16
	TTOption           int16
	Collate            int16
	FormName           [32]uint16
	LogPixels          uint16
	BitsPerPel         uint32
	PelsWidth          uint32
	PelsHeight         uint32
	DisplayFlags       uint32
	DisplayFrequency   uint32
	ICMMethod          uint32
	ICMIntent          uint32
	MediaType          uint32
	DitherType         uint32
	Reserved1          uint32
	Reserved2          uint32
	PanningWidth       uint32
	PanningHeight      uint32
}

// displayDeviceW mirrors DISPLAY_DEVICEW.
type displayDeviceW struct {
	Cb           uint32
	DeviceName   [32]uint16
	DeviceString [128]uint16
	StateFlags   uint32
	DeviceID     [128]uint16
	DeviceKey    [128]uint16
}

// user32API calls the Win32 display functions directly.
type user32API struct{}

// NewSystemAPI returns the user32 backend. Windows keeps the defaults in
// the registry, so no state directory is needed.
func NewSystemAPI(string) (API, error) {
	if err := user32.Load(); err != nil {
		return nil, err
	}
	return user32API{}, nil
}

// deviceName converts a device name for the W functions; "" maps to NULL,
// the primary output. A name that cannot be converted is an error, never
// a silent fall back to the primary output.
func deviceName(device string) (*uint16, error) {
	if device == "" {
		return nil, nil
	}
	return windows.UTF16PtrFromString(device)
}

func (user32API) enum(device string, index uint32) (Settings, bool) {
	name, err := deviceName(device)
	if err != nil {
		return Settings{}, false
	}
	var dm devModeW
	dm.Size = uint16(unsafe.Sizeof(dm))
	r, _, _ := procEnumDisplaySettingsW.Call(uintptr(unsafe.Pointer(name)), uintptr(index), uintptr(unsafe.Pointer(&dm)))
	if r == 0 {
		return Settings{}, false
	}
	return Settings{
		Width:        dm.PelsWidth,
		Height:       dm.PelsHeight,
		RefreshRate:  dm.DisplayFrequency,
		BitsPerPixel: dm.BitsPerPel,
	}, true
}

func (a user32API) CurrentSettings(device string) (Settings, bool) {
	return a.enum(device, enumCurrentSettings)
}

func (a user32API) EnumSettings(device string, index uint32) (Settings, bool) {
	return a.enum(device, index)
}

func (user32API) EnumDevices(index uint32) (Device, bool) {
	var dd displayDeviceW
	dd.Cb = uint32(unsafe.Sizeof(dd))
	r, _, _ := procEnumDisplayDevicesW.Call(0, uintptr(index), uintptr(unsafe.Pointer(&dd)), 0)
	if r == 0 {
		return Device{}, false
	}
	return Device{
		Name:        windows.UTF16ToString(dd.DeviceName[:]),
		Description: windows.UTF16ToString(dd.DeviceString[:]),
		Active:      dd.StateFlags&displayDeviceActive != 0,
		Primary:     dd.StateFlags&displayDevicePrimary != 0,
	}, true
}

func (user32API) ChangeSettings(device string, s *Settings, flags ChangeFlags) Result {
	name, err := deviceName(device)
	if err != nil {
		return ResultBadParam
	}
	var dm *devModeW
	if s != nil {
		dm = &devModeW{
			PelsWidth:  s.Width,
			PelsHeight: s.Height,
			Fields:     dmPelsWidth | dmPelsHeight,
		}
		dm.Size = uint16(unsafe.Sizeof(*dm))
		if s.RefreshRate != 0 {
			dm.DisplayFrequency = s.RefreshRate
			dm.Fields |= dmDisplayFrequency
		}
		if s.BitsPerPixel != 0 {
			dm.BitsPerPel = s.BitsPerPixel
			dm.Fields |= dmBitsPerPel
		}
	}
	r, _, _ := procChangeDisplaySettingsExW.Call(uintptr(unsafe.Pointer(name)), uintptr(unsafe.Pointer(dm)), 0, uintptr(flags), 0)
	return Result(int32(r))
}
