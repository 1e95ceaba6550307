// Package infra implements infrastructure concerns (process, filesystem, storage).
package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// ProcessInfo is one row of a process table snapshot.
// Exe is empty when the path could not be read (exited, access denied).
type ProcessInfo struct {
	PID  int
	Name string
	Exe  string
}

// ProcessLister snapshots the OS process table.
type ProcessLister interface {
	List() ([]ProcessInfo, error)
}

// GopsutilLister lists processes through gopsutil.
type GopsutilLister struct{}

// List returns every process whose name could be read.
func (GopsutilLister) List() ([]ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		exe, _ := p.Exe()
		infos = append(infos, ProcessInfo{PID: int(p.Pid), Name: name, Exe: exe})
	}
	return infos, nil
}

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct {
	lister ProcessLister
}

// NewProcessManager creates a new process manager.
func NewProcessManager() *ProcessManagerImpl {
	return &ProcessManagerImpl{lister: GopsutilLister{}}
}

// NewProcessManagerWithLister creates a process manager over a custom lister (for testing).
func NewProcessManagerWithLister(lister ProcessLister) *ProcessManagerImpl {
	return &ProcessManagerImpl{lister: lister}
}

// IsTargetRunning reports whether any live process matches the target.
// Path targets compare the full executable path exactly, name targets
// compare the process name case-insensitively.
func (pm *ProcessManagerImpl) IsTargetRunning(target domain.ProcessTarget) (bool, error) {
	procs, err := pm.lister.List()
	if err != nil {
		return false, err
	}

	for _, p := range procs {
		switch target.Match {
		case domain.MatchPath:
			if p.Exe != "" && p.Exe == target.Value {
				return true, nil
			}
		default:
			if strings.EqualFold(p.Name, target.Value) {
				return true, nil
			}
		}
	}
	return false, nil
}

// FindByName returns PIDs of processes whose name equals the pattern (case-insensitive).
func (pm *ProcessManagerImpl) FindByName(pattern string) ([]int, error) {
	procs, err := pm.lister.List()
	if err != nil {
		return nil, err
	}

	var found []int
	for _, p := range procs {
		if strings.EqualFold(p.Name, pattern) {
			found = append(found, p.PID)
		}
	}
	return found, nil
}

// ResolveExecutablePath finds the executable behind a running process name.
// Several instances are fine as long as they share one executable.
func (pm *ProcessManagerImpl) ResolveExecutablePath(name string) (string, error) {
	procs, err := pm.lister.List()
	if err != nil {
		return "", err
	}

	var path string
	matched := 0
	for _, p := range procs {
		if !strings.EqualFold(p.Name, name) {
			continue
		}
		matched++
		if p.Exe == "" {
			continue
		}
		if path == "" {
			path = p.Exe
			continue
		}
		if p.Exe != path {
			return "", fmt.Errorf("processes named %q run from different executables: %s, %s", name, path, p.Exe)
		}
	}

	if matched == 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrProcessNotFound, name)
	}
	if path == "" {
		return "", fmt.Errorf("executable path of %q is not readable", name)
	}
	return path, nil
}

// IsRunning checks if a PID exists and is running.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
