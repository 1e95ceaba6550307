package display

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LayoutFileName is the snapshot file kept in the data directory.
const LayoutFileName = "display_layout.json"

// SavedCrtc is one output group's layout in terms that survive a
// reconnect: output names and mode geometry rather than server ids.
type SavedCrtc struct {
	Outputs     []string `json:"outputs"`
	X           int16    `json:"x"`
	Y           int16    `json:"y"`
	Width       uint16   `json:"width"`
	Height      uint16   `json:"height"`
	RefreshRate uint32   `json:"refresh_rate"`
	Rotation    uint16   `json:"rotation"`
}

// LayoutFile persists the layout found before the first outstanding mode
// change. It exists only while a change is outstanding, so a restore from
// any process reverts to it and a desktop change made in between is not
// overwritten by an old snapshot.
type LayoutFile struct {
	path string
}

// NewLayoutFile stores the snapshot at path.
func NewLayoutFile(path string) *LayoutFile {
	return &LayoutFile{path: path}
}

// NewLayoutFileIn stores the snapshot under dir.
func NewLayoutFileIn(dir string) *LayoutFile {
	return NewLayoutFile(filepath.Join(dir, LayoutFileName))
}

// Path returns the snapshot location.
func (f *LayoutFile) Path() string {
	return f.path
}

// Load returns the snapshot, or nil when none is stored.
func (f *LayoutFile) Load() ([]SavedCrtc, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var layout []SavedCrtc
	if err := json.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("corrupt display layout %s: %w", f.path, err)
	}
	return layout, nil
}

// SaveIfAbsent stores layout unless a snapshot already exists and reports
// whether it wrote one. The first snapshot always wins.
func (f *LayoutFile) SaveIfAbsent(layout []SavedCrtc) (bool, error) {
	tmp, err := f.writeTemp(layout)
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp)

	// link fails when the target exists, which makes the check and the
	// write one step
	if err := os.Link(tmp, f.path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Update replaces the entry driving the same first output. Without a
// stored snapshot there is nothing outstanding and Update does nothing.
func (f *LayoutFile) Update(entry SavedCrtc) error {
	layout, err := f.Load()
	if err != nil || layout == nil {
		return err
	}
	replaced := false
	for i, saved := range layout {
		if len(saved.Outputs) > 0 && len(entry.Outputs) > 0 && saved.Outputs[0] == entry.Outputs[0] {
			layout[i] = entry
			replaced = true
		}
	}
	if !replaced {
		layout = append(layout, entry)
	}

	tmp, err := f.writeTemp(layout)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Clear drops the snapshot. A missing file is not an error.
func (f *LayoutFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *LayoutFile) writeTemp(layout []SavedCrtc) (string, error) {
	if layout == nil {
		layout = []SavedCrtc{}
	}
	data, err := json.Marshal(layout)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp := fmt.Sprintf("%s.%d.tmp", f.path, os.Getpid())
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return "", err
	}
	return tmp, nil
}
