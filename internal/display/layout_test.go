package display

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	desktopLayout = []SavedCrtc{
		{Outputs: []string{"DP-1"}, Width: 2560, Height: 1440, RefreshRate: 165, Rotation: 1},
		{Outputs: []string{"HDMI-1"}, X: 2560, Width: 1920, Height: 1080, RefreshRate: 60, Rotation: 1},
	}
	gameLayout = []SavedCrtc{
		{Outputs: []string{"DP-1"}, Width: 1280, Height: 960, RefreshRate: 240, Rotation: 1},
	}
)

func TestLayoutFile_LoadMissing(t *testing.T) {
	f := NewLayoutFileIn(t.TempDir())

	layout, err := f.Load()
	require.NoError(t, err)
	assert.Nil(t, layout)
	assert.Equal(t, LayoutFileName, filepath.Base(f.Path()))
}

func TestLayoutFile_FirstSnapshotWins(t *testing.T) {
	f := NewLayoutFileIn(filepath.Join(t.TempDir(), "data"))

	wrote, err := f.SaveIfAbsent(desktopLayout)
	require.NoError(t, err)
	assert.True(t, wrote)

	// a later process sees the game layout as current; it must not
	// replace the desktop snapshot
	wrote, err = f.SaveIfAbsent(gameLayout)
	require.NoError(t, err)
	assert.False(t, wrote)

	layout, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, desktopLayout, layout)

	entries, err := os.ReadDir(filepath.Dir(f.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLayoutFile_ClearAllowsNewSnapshot(t *testing.T) {
	f := NewLayoutFileIn(t.TempDir())
	_, err := f.SaveIfAbsent(desktopLayout)
	require.NoError(t, err)

	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear(), "clearing twice is fine")

	wrote, err := f.SaveIfAbsent(gameLayout)
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestLayoutFile_Update(t *testing.T) {
	f := NewLayoutFileIn(t.TempDir())

	// nothing outstanding: nothing to update
	require.NoError(t, f.Update(gameLayout[0]))
	layout, err := f.Load()
	require.NoError(t, err)
	assert.Nil(t, layout)

	_, err = f.SaveIfAbsent(desktopLayout)
	require.NoError(t, err)
	require.NoError(t, f.Update(gameLayout[0]))

	layout, err = f.Load()
	require.NoError(t, err)
	require.Len(t, layout, 2)
	assert.Equal(t, gameLayout[0], layout[0], "the permanent mode becomes the stored default")
	assert.Equal(t, desktopLayout[1], layout[1])
}

func TestLayoutFile_Corrupt(t *testing.T) {
	f := NewLayoutFileIn(t.TempDir())
	require.NoError(t, os.WriteFile(f.Path(), []byte("{not json"), 0600))

	_, err := f.Load()
	assert.Error(t, err)
}
