package preset

import (
	"fmt"
	"sort"
)

// Registry holds the known game presets.
type Registry struct {
	presets map[string]Preset
}

// NewRegistry creates a registry with all built-in presets.
func NewRegistry() *Registry {
	return NewRegistryWithPresets(NewValorantPreset(), NewCS2Preset())
}

// NewRegistryWithPresets creates a registry with custom presets (for testing).
func NewRegistryWithPresets(presets ...Preset) *Registry {
	r := &Registry{
		presets: make(map[string]Preset),
	}
	for _, p := range presets {
		r.Register(p)
	}
	return r
}

// Register adds a preset, replacing any with the same ID.
func (r *Registry) Register(p Preset) {
	r.presets[p.ID()] = p
}

// Get returns a preset by ID.
func (r *Registry) Get(id string) (Preset, error) {
	p, ok := r.presets[id]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (known: %v)", id, r.List())
	}
	return p, nil
}

// GetAll returns all presets ordered by ID.
func (r *Registry) GetAll() []Preset {
	result := make([]Preset, 0, len(r.presets))
	for _, p := range r.presets {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// List returns all preset IDs, sorted.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.presets))
	for id := range r.presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
