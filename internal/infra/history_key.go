package infra

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// historyKeySize is the raw SQLCipher key length (256 bits).
const historyKeySize = 32

// HistoryKeyFile keeps the history database key next to the database as
// hex, the form SQLCipher takes in its x'...' key literal. Losing the file
// makes an encrypted history unreadable, so it is written once and never
// replaced.
type HistoryKeyFile struct {
	path string
}

// NewHistoryKeyFile uses the key file at path.
func NewHistoryKeyFile(path string) *HistoryKeyFile {
	return &HistoryKeyFile{path: path}
}

// Path returns the key file location.
func (f *HistoryKeyFile) Path() string {
	return f.path
}

// Load reads and validates the key.
func (f *HistoryKeyFile) Load() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history key: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("history key %s is not hex: %w", f.path, err)
	}
	if len(key) != historyKeySize {
		return nil, fmt.Errorf("history key %s has %d bytes, want %d", f.path, len(key), historyKeySize)
	}
	return key, nil
}

// Save writes key readable by the owner only. It fails with os.ErrExist
// when a key is already stored.
func (f *HistoryKeyFile) Save(key []byte) error {
	if len(key) != historyKeySize {
		return fmt.Errorf("history key has %d bytes, want %d", len(key), historyKeySize)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	out, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	if _, err := out.WriteString(hex.EncodeToString(key) + "\n"); err != nil {
		out.Close()
		os.Remove(f.path)
		return fmt.Errorf("failed to write history key: %w", err)
	}
	return out.Close()
}

// Exists reports whether the key file is present.
func (f *HistoryKeyFile) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// NewHistoryKey returns a random key for a new history database.
func NewHistoryKey() ([]byte, error) {
	key := make([]byte, historyKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate history key: %w", err)
	}
	return key, nil
}

// EnsureHistoryKey returns the stored key, creating one on first use. When
// two processes race to create it, both end up with the winner's key.
func EnsureHistoryKey(store domain.HistoryKeyStore) ([]byte, error) {
	if store.Exists() {
		return store.Load()
	}
	key, err := NewHistoryKey()
	if err != nil {
		return nil, err
	}
	if err := store.Save(key); err != nil {
		if errors.Is(err, os.ErrExist) {
			return store.Load()
		}
		return nil, err
	}
	return key, nil
}

var _ domain.HistoryKeyStore = (*HistoryKeyFile)(nil)
