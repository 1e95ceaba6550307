package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// FileRegistry implements domain.InstanceRegistry using a JSON file
// in the data directory.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileRegistry creates a registry at path.
func NewFileRegistry(path string, pm domain.ProcessManager) *FileRegistry {
	return &FileRegistry{
		path:           path,
		processManager: pm,
	}
}

// GetPath returns the instance file path.
func (r *FileRegistry) GetPath() string {
	return r.path
}

// Register records the calling instance. It fails with
// domain.ErrAlreadyRunning when a different live process holds the record;
// a record left by a dead process is taken over.
func (r *FileRegistry) Register(instance domain.Instance) error {
	existing, err := r.Get()
	if err != nil {
		return err
	}
	if existing != nil && existing.PID != instance.PID && r.processManager.IsRunning(existing.PID) {
		return fmt.Errorf("%w (pid %d, control %s)", domain.ErrAlreadyRunning, existing.PID, existing.ControlAddr)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return r.atomicWrite(&instance)
}

// Get returns the recorded instance, or nil when none is recorded.
func (r *FileRegistry) Get() (*domain.Instance, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var instance domain.Instance
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

// IsAlive checks whether the recorded instance is still running.
func (r *FileRegistry) IsAlive() (bool, error) {
	instance, err := r.Get()
	if err != nil || instance == nil {
		return false, err
	}
	return r.processManager.IsRunning(instance.PID), nil
}

// Clear removes the instance file. A missing file is not an error.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// atomicWrite writes the record atomically (write + rename).
func (r *FileRegistry) atomicWrite(instance *domain.Instance) error {
	data, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.InstanceRegistry.
var _ domain.InstanceRegistry = (*FileRegistry)(nil)
