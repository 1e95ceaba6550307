// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"strings"
	"sync"

	"github.com/eliteGoblin/focusd/disp_mon/internal/infra"
)

// ProcessTable is a scriptable process table. It satisfies infra.ProcessLister,
// so it runs through the real matching logic of infra.ProcessManagerImpl.
type ProcessTable struct {
	mu      sync.Mutex
	nextPID int
	procs   []infra.ProcessInfo
}

// NewProcessTable creates a table holding only a few system processes.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{
		nextPID: 1000,
		procs: []infra.ProcessInfo{
			{PID: 4, Name: "System"},
			{PID: 640, Name: "explorer.exe", Exe: `C:\Windows\explorer.exe`},
		},
	}
}

// Launch adds a process running exe and returns its PID.
func (t *ProcessTable) Launch(exe string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextPID++
	name := exe
	if i := strings.LastIndexAny(exe, `/\`); i >= 0 {
		name = exe[i+1:]
	}
	t.procs = append(t.procs, infra.ProcessInfo{PID: t.nextPID, Name: name, Exe: exe})
	return t.nextPID
}

// Exit removes every process running exe.
func (t *ProcessTable) Exit(exe string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.procs[:0]
	for _, p := range t.procs {
		if p.Exe != exe {
			kept = append(kept, p)
		}
	}
	t.procs = kept
}

// List returns a snapshot of the table.
func (t *ProcessTable) List() ([]infra.ProcessInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]infra.ProcessInfo(nil), t.procs...), nil
}

var _ infra.ProcessLister = (*ProcessTable)(nil)
