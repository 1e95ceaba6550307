package infra

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

type staticLister struct {
	procs []ProcessInfo
	err   error
}

func (s staticLister) List() ([]ProcessInfo, error) {
	return s.procs, s.err
}

const valorantExe = `C:\Riot Games\VALORANT\live\ShooterGame\Binaries\Win64\VALORANT-Win64-Shipping.exe`

func testProcesses() staticLister {
	return staticLister{procs: []ProcessInfo{
		{PID: 4, Name: "System"},
		{PID: 1200, Name: "explorer.exe", Exe: `C:\Windows\explorer.exe`},
		{PID: 3400, Name: "VALORANT-Win64-Shipping.exe", Exe: valorantExe},
	}}
}

func TestIsTargetRunning_Path(t *testing.T) {
	pm := NewProcessManagerWithLister(testProcesses())

	ok, err := pm.IsTargetRunning(domain.NewProcessTarget(valorantExe))
	require.NoError(t, err)
	assert.True(t, ok)

	// path match is exact
	ok, err = pm.IsTargetRunning(domain.ProcessTarget{Value: `c:\riot games\valorant\live\ShooterGame\Binaries\Win64\VALORANT-Win64-Shipping.exe`, Match: domain.MatchPath})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsTargetRunning_Name(t *testing.T) {
	pm := NewProcessManagerWithLister(testProcesses())

	ok, err := pm.IsTargetRunning(domain.NewProcessTarget("valorant-win64-shipping.exe"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pm.IsTargetRunning(domain.NewProcessTarget("cs2.exe"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsTargetRunning_ListError(t *testing.T) {
	pm := NewProcessManagerWithLister(staticLister{err: errors.New("snapshot failed")})

	_, err := pm.IsTargetRunning(domain.NewProcessTarget("cs2.exe"))
	assert.Error(t, err)
}

func TestFindByName(t *testing.T) {
	pm := NewProcessManagerWithLister(testProcesses())

	pids, err := pm.FindByName("EXPLORER.EXE")
	require.NoError(t, err)
	assert.Equal(t, []int{1200}, pids)

	pids, err = pm.FindByName("explorer")
	require.NoError(t, err)
	assert.Empty(t, pids, "name match is exact, not substring")
}

func TestResolveExecutablePath(t *testing.T) {
	t.Run("single instance", func(t *testing.T) {
		pm := NewProcessManagerWithLister(testProcesses())
		path, err := pm.ResolveExecutablePath("VALORANT-Win64-Shipping.exe")
		require.NoError(t, err)
		assert.Equal(t, valorantExe, path)
	})

	t.Run("not running", func(t *testing.T) {
		pm := NewProcessManagerWithLister(testProcesses())
		_, err := pm.ResolveExecutablePath("cs2.exe")
		assert.ErrorIs(t, err, domain.ErrProcessNotFound)
	})

	t.Run("instances share one executable", func(t *testing.T) {
		pm := NewProcessManagerWithLister(staticLister{procs: []ProcessInfo{
			{PID: 10, Name: "game.exe", Exe: `D:\Games\game.exe`},
			{PID: 11, Name: "Game.exe", Exe: `D:\Games\game.exe`},
		}})
		path, err := pm.ResolveExecutablePath("game.exe")
		require.NoError(t, err)
		assert.Equal(t, `D:\Games\game.exe`, path)
	})

	t.Run("instances from different executables", func(t *testing.T) {
		pm := NewProcessManagerWithLister(staticLister{procs: []ProcessInfo{
			{PID: 10, Name: "game.exe", Exe: `D:\Games\game.exe`},
			{PID: 11, Name: "game.exe", Exe: `E:\Other\game.exe`},
		}})
		_, err := pm.ResolveExecutablePath("game.exe")
		assert.Error(t, err)
	})

	t.Run("path unreadable", func(t *testing.T) {
		pm := NewProcessManagerWithLister(testProcesses())
		_, err := pm.ResolveExecutablePath("System")
		assert.Error(t, err)
	})
}

func TestIsRunning_CurrentProcess(t *testing.T) {
	pm := NewProcessManager()

	assert.Equal(t, os.Getpid(), pm.GetCurrentPID())
	assert.True(t, pm.IsRunning(os.Getpid()))
}
