// Package topology enables and disables monitor devices through the
// Windows device-management tool (pnputil).
package topology

import (
	"bufio"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// Parser turns device tool output into monitor devices.
type Parser interface {
	Parse(output []byte) ([]domain.DeviceMonitor, error)
}

// PnputilFormat is the `pnputil /enum-devices` layout PnputilParser accepts:
// each device block is
//
//	Instance ID:        <id>
//	Device Description: ...
//	Class Name:         ...
//	Class GUID:         ...
//	Manufacturer Name:  ...
//	Status:             <status>
//	Driver Name:        ...
//
// Four lines sit between Instance ID and Status and one line follows Status.
const PnputilFormat = "pnputil-10.0/en-US"

const (
	instanceIDField = "Instance ID:"
	statusField     = "Status:"

	linesAfterInstanceID = 4
	linesAfterStatus     = 1
)

// PnputilParser reads the positional pnputil layout and fails closed:
// any deviation returns no devices and domain.ErrParseDrift.
type PnputilParser struct{}

// Parse decodes output (UTF-8, or GBK from a Chinese-locale console) and
// extracts instance-id/status pairs.
func (PnputilParser) Parse(output []byte) ([]domain.DeviceMonitor, error) {
	text, err := decode(output)
	if err != nil {
		return nil, err
	}

	var (
		monitors   []domain.DeviceMonitor
		instanceID string
		pendingID  bool
		skip       int
		lineNo     int
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// skipped lines are counted whether blank or not
		if skip > 0 {
			skip--
			if pendingID && (strings.HasPrefix(line, instanceIDField) || strings.HasPrefix(line, statusField)) {
				return nil, drift(lineNo, "field inside skipped block")
			}
			continue
		}
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, instanceIDField):
			if pendingID {
				return nil, drift(lineNo, "instance id without status")
			}
			instanceID = strings.TrimSpace(strings.TrimPrefix(line, instanceIDField))
			if instanceID == "" {
				return nil, drift(lineNo, "empty instance id")
			}
			pendingID = true
			skip = linesAfterInstanceID

		case strings.HasPrefix(line, statusField):
			if !pendingID {
				return nil, drift(lineNo, "status without instance id")
			}
			monitors = append(monitors, domain.DeviceMonitor{
				InstanceID: instanceID,
				Status:     strings.TrimSpace(strings.TrimPrefix(line, statusField)),
			})
			pendingID = false
			skip = linesAfterStatus

		default:
			if pendingID {
				return nil, drift(lineNo, fmt.Sprintf("expected %q", statusField))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if pendingID {
		return nil, drift(lineNo, "output ended inside a device block")
	}
	return monitors, nil
}

func drift(line int, what string) error {
	return fmt.Errorf("%w: %s at line %d (format %s)", domain.ErrParseDrift, what, line, PnputilFormat)
}

func decode(output []byte) (string, error) {
	if utf8.Valid(output) {
		return string(output), nil
	}
	b, err := simplifiedchinese.GBK.NewDecoder().Bytes(output)
	if err != nil {
		return "", fmt.Errorf("decode device tool output: %w", err)
	}
	return string(b), nil
}
