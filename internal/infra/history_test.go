package infra

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

func newTestHistory(t *testing.T, key []byte) (*SQLHistoryStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "history.db")
	store, err := NewSQLHistoryStore(path, key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestSQLHistoryStore_RecordAndRecent(t *testing.T) {
	key, err := NewHistoryKey()
	require.NoError(t, err)
	store, _ := newTestHistory(t, key)

	start := time.Now().Add(-time.Minute)
	require.NoError(t, store.Record(domain.SessionEvent{
		Kind: domain.EdgeStarted, Process: "cs2.exe", Strategy: "display", Mode: "1280x960@240Hz", At: start,
	}))
	require.NoError(t, store.Record(domain.SessionEvent{
		Kind: domain.EdgeStopped, Process: "cs2.exe", Strategy: "display", Error: "failed to change display settings",
	}))

	events, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// newest first
	assert.Equal(t, domain.EdgeStopped, events[0].Kind)
	assert.NotEmpty(t, events[0].Error)
	assert.False(t, events[0].At.IsZero())

	assert.Equal(t, domain.EdgeStarted, events[1].Kind)
	assert.Equal(t, "1280x960@240Hz", events[1].Mode)
	assert.Equal(t, start.UnixNano(), events[1].At.UnixNano())
	assert.Greater(t, events[0].ID, events[1].ID)
}

func TestSQLHistoryStore_RecentLimit(t *testing.T) {
	store, _ := newTestHistory(t, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(domain.SessionEvent{Kind: domain.EdgeStarted, Process: "game", Strategy: "display"}))
	}

	events, err := store.Recent(3)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	events, err = store.Recent(0)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestSQLHistoryStore_EmptyIsNotNil(t *testing.T) {
	store, _ := newTestHistory(t, nil)

	events, err := store.Recent(10)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestSQLHistoryStore_PersistsAcrossReopen(t *testing.T) {
	key, err := NewHistoryKey()
	require.NoError(t, err)
	store, path := newTestHistory(t, key)
	require.NoError(t, store.Record(domain.SessionEvent{Kind: domain.EdgeStarted, Process: "game", Strategy: "topology"}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLHistoryStore(path, key)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "topology", events[0].Strategy)
}

func TestSQLHistoryStore_Encrypted(t *testing.T) {
	key, err := NewHistoryKey()
	require.NoError(t, err)
	store, path := newTestHistory(t, key)
	require.NoError(t, store.Record(domain.SessionEvent{Kind: domain.EdgeStarted, Process: "VALORANT-Win64-Shipping.exe", Strategy: "display"}))
	require.NoError(t, store.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(string(raw), "SQLite format 3"), "encrypted db must not carry the plain header")
	assert.NotContains(t, string(raw), "VALORANT")

	wrongKey, err := NewHistoryKey()
	require.NoError(t, err)
	_, err = NewSQLHistoryStore(path, wrongKey)
	assert.Error(t, err)
}
