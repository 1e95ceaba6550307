package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemManager_ExpandHome(t *testing.T) {
	fm := NewFileSystemManagerWithHome("/home/player")

	assert.Equal(t, filepath.Join("/home/player", "games", "cs2.exe"), fm.ExpandHome("~/games/cs2.exe"))
	assert.Equal(t, "/home/player", fm.ExpandHome("~"))
	assert.Equal(t, "/opt/game", fm.ExpandHome("/opt/game"))
	assert.Equal(t, "~player/x", fm.ExpandHome("~player/x"))
}

func TestFileSystemManager_Exists(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), nil, 0600))
	fm := NewFileSystemManagerWithHome(home)

	assert.True(t, fm.Exists("~/config.toml"))
	assert.False(t, fm.Exists("~/missing.toml"))
}
