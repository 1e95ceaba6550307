package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEnumFailed means the OS could not enumerate current or available modes.
	ErrEnumFailed = errors.New("failed to enumerate display settings")

	// ErrChangeFailed is the target of every *ChangeFailedError.
	ErrChangeFailed = errors.New("failed to change display settings")

	// ErrModeNotFound means no advertised mode matches a requested target.
	ErrModeNotFound = errors.New("no matching display mode")

	// ErrGamePathUnset is returned when a watcher is needed but no game path is configured.
	ErrGamePathUnset = errors.New("game path is not configured")

	// ErrUnsupportedPlatform is returned by display backends on platforms without one.
	ErrUnsupportedPlatform = errors.New("display control is not supported on this platform")

	// ErrParseDrift means the device tool output did not match the expected layout.
	ErrParseDrift = errors.New("device tool output format not recognized")

	// ErrProcessNotFound means no running process matched a name.
	ErrProcessNotFound = errors.New("process not found")

	// ErrAlreadyRunning means another live instance holds the instance record.
	ErrAlreadyRunning = errors.New("another instance is already running")

	// ErrMonitorNotFound means a device name is not among the scanned outputs.
	ErrMonitorNotFound = errors.New("unknown monitor")
)

// ChangePhase is the step of a two-phase mode change that failed.
type ChangePhase string

const (
	PhaseTest    ChangePhase = "test"
	PhaseCommit  ChangePhase = "commit"
	PhaseRestore ChangePhase = "restore"
)

// ChangeReason classifies a rejected display change.
type ChangeReason string

const (
	ReasonTestRejected    ChangeReason = "test_rejected"
	ReasonRestartRequired ChangeReason = "restart_required"
	ReasonBadMode         ChangeReason = "bad_mode"
	ReasonDriverFailed    ChangeReason = "driver_failed"
	ReasonUnknown         ChangeReason = "unknown"
)

// ChangeFailedError carries why and where a display change was rejected.
type ChangeFailedError struct {
	Phase  ChangePhase
	Reason ChangeReason
	Code   int32 // raw result code from the display API
}

func (e *ChangeFailedError) Error() string {
	return fmt.Sprintf("%s: %s phase: %s (code %d)", ErrChangeFailed, e.Phase, e.Reason, e.Code)
}

func (e *ChangeFailedError) Unwrap() error {
	return ErrChangeFailed
}

// ChangeReasonOf extracts the reason from err, or "" if err is not a change failure.
func ChangeReasonOf(err error) ChangeReason {
	var cf *ChangeFailedError
	if errors.As(err, &cf) {
		return cf.Reason
	}
	return ""
}
