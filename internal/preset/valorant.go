package preset

import "github.com/eliteGoblin/focusd/disp_mon/internal/domain"

// ValorantID identifies the VALORANT preset.
const ValorantID = "valorant"

// ValorantPreset covers the Riot client and its regional launchers.
type ValorantPreset struct{}

func NewValorantPreset() *ValorantPreset {
	return &ValorantPreset{}
}

func (p *ValorantPreset) ID() string {
	return ValorantID
}

func (p *ValorantPreset) Name() string {
	return "VALORANT"
}

// ProcessNames returns the shipping client before the launchers, so a
// detection while the game runs yields the client executable.
func (p *ValorantPreset) ProcessNames() []string {
	return []string{
		"VALORANT-Win64-Shipping.exe",
		valorantClientExe,
		valorantLauncherExe, // CN launcher
		"RiotClientServices.exe",
	}
}

// Strategy disables secondary monitors; the client reacts badly to
// resolution switches while it runs.
func (p *ValorantPreset) Strategy() domain.StrategyKind {
	return domain.StrategyTopology
}

var _ Preset = (*ValorantPreset)(nil)
