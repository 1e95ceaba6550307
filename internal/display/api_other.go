//go:build !windows && !linux

package display

import "github.com/eliteGoblin/focusd/disp_mon/internal/domain"

// NewSystemAPI has no backend on this platform.
func NewSystemAPI(string) (API, error) {
	return nil, domain.ErrUnsupportedPlatform
}
