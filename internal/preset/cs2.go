package preset

import "github.com/eliteGoblin/focusd/disp_mon/internal/domain"

// CS2Preset covers Counter-Strike 2.
type CS2Preset struct{}

func NewCS2Preset() *CS2Preset {
	return &CS2Preset{}
}

func (p *CS2Preset) ID() string {
	return "cs2"
}

func (p *CS2Preset) Name() string {
	return "Counter-Strike 2"
}

func (p *CS2Preset) ProcessNames() []string {
	return []string{"cs2.exe", "cs2"}
}

func (p *CS2Preset) Strategy() domain.StrategyKind {
	return domain.StrategyDisplay
}

var _ Preset = (*CS2Preset)(nil)
