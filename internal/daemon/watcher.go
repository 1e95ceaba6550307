// Package daemon implements the process watcher and its edge strategies.
package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
	"github.com/eliteGoblin/focusd/disp_mon/internal/metrics"
)

// DefaultPollInterval is how often the process table is sampled.
const DefaultPollInterval = 2 * time.Second

// WatcherConfig holds process watcher configuration.
type WatcherConfig struct {
	PollInterval  time.Duration // How often to sample the process table (default 2s)
	RestoreOnStop bool          // Run one final stop action if cancelled while the game is running
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		PollInterval: DefaultPollInterval,
	}
}

// ProcessWatcher polls for one target process and runs its strategy on
// each running/not-running transition.
//
// It is Idle or Watching. The cancel slot, guarded by mu, is the only
// source of truth for Watching; the watching flag mirrors it so status
// reads never take the lock.
type ProcessWatcher struct {
	config   WatcherConfig
	target   domain.ProcessTarget
	strategy domain.EdgeStrategy
	pm       domain.ProcessManager
	history  domain.HistoryStore
	logger   *zap.Logger

	mode atomic.Pointer[domain.DisplayMode]

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	watching atomic.Bool

	// running is the last observed process state; it outlives Stop/Start.
	running atomic.Bool

	// actionMu serializes strategy calls across consecutive polling tasks.
	actionMu sync.Mutex

	spawned atomic.Int64
	exited  atomic.Int64
}

// NewProcessWatcher creates an Idle watcher. history may be nil.
func NewProcessWatcher(
	config WatcherConfig,
	target domain.ProcessTarget,
	mode domain.DisplayMode,
	strategy domain.EdgeStrategy,
	pm domain.ProcessManager,
	history domain.HistoryStore,
	logger *zap.Logger,
) *ProcessWatcher {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	w := &ProcessWatcher{
		config:   config,
		target:   target,
		strategy: strategy,
		pm:       pm,
		history:  history,
		logger:   logger.With(zap.String("target", target.Value), zap.String("strategy", strategy.Name())),
	}
	w.mode.Store(&mode)

	closed := make(chan struct{})
	close(closed)
	w.done = closed
	return w
}

// Start spawns the polling task. Calling it while Watching is a logged no-op.
func (w *ProcessWatcher) Start() {
	w.StartAfter(nil)
}

// StartAfter is Start, but the new task takes no action until after is
// closed. A replacement watcher passes its predecessor's Done so the two
// never issue display calls at the same time.
func (w *ProcessWatcher) StartAfter(after <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.logger.Warn("watcher already started")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	prev := w.done
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	w.watching.Store(true)
	w.spawned.Add(1)
	metrics.SetWatching(true)

	go w.run(ctx, prev, after, done)
}

// Stop cancels the polling task without waiting for it and reports whether
// a task was running. Stopping an Idle watcher is a logged no-op.
func (w *ProcessWatcher) Stop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		w.logger.Warn("watcher is not running")
		return false
	}

	w.cancel()
	w.cancel = nil
	w.watching.Store(false)
	metrics.SetWatching(false)
	return true
}

// Done is closed once the most recent polling task has exited.
func (w *ProcessWatcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// IsWatching reports whether a polling task is active.
func (w *ProcessWatcher) IsWatching() bool {
	return w.watching.Load()
}

// IsGameRunning reports the last observed process state.
func (w *ProcessWatcher) IsGameRunning() bool {
	return w.running.Load()
}

// Mode returns the current display mode target.
func (w *ProcessWatcher) Mode() domain.DisplayMode {
	return *w.mode.Load()
}

// SetMode replaces the display mode target. A running task picks it up on
// its next start edge.
func (w *ProcessWatcher) SetMode(mode domain.DisplayMode) {
	w.mode.Store(&mode)
	w.logger.Info("display mode target updated", zap.Stringer("mode", mode))
}

// Target returns the watched process.
func (w *ProcessWatcher) Target() domain.ProcessTarget {
	return w.target
}

// TaskCounts returns how many polling tasks were spawned and have exited.
func (w *ProcessWatcher) TaskCounts() (spawned, exited int64) {
	return w.spawned.Load(), w.exited.Load()
}

// run is the polling loop. It waits for the previous task to finish so two
// tasks never interleave their edge actions.
func (w *ProcessWatcher) run(ctx context.Context, prev, after <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer w.exited.Add(1)
	<-prev
	if after != nil {
		<-after
	}

	w.logger.Info("watcher started", zap.Duration("interval", w.config.PollInterval))

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.finish()
			w.logger.Info("watcher stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick samples the process table and acts only on a state change.
func (w *ProcessWatcher) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	present, err := w.pm.IsTargetRunning(w.target)
	metrics.ObservePoll(time.Since(start).Seconds())
	if err != nil {
		// no information this tick; keep the previous state
		metrics.IncPollError()
		w.logger.Warn("failed to sample process table", zap.Error(err))
		return
	}

	w.actionMu.Lock()
	defer w.actionMu.Unlock()

	// cancelled while sampling: a stopped watcher never acts
	if ctx.Err() != nil {
		return
	}
	if was := w.running.Swap(present); was == present {
		return
	}
	metrics.SetGameRunning(present)

	// the in-flight action completes even if Stop arrives meanwhile
	actionCtx := context.WithoutCancel(ctx)
	if present {
		w.onStart(actionCtx)
	} else {
		w.onStop(actionCtx)
	}
}

// finish runs the optional final stop action after cancellation.
func (w *ProcessWatcher) finish() {
	if !w.config.RestoreOnStop {
		return
	}

	w.actionMu.Lock()
	defer w.actionMu.Unlock()

	if !w.running.Swap(false) {
		return
	}
	metrics.SetGameRunning(false)
	w.logger.Info("restoring on stop while game is running")
	w.onStop(context.Background())
}

func (w *ProcessWatcher) onStart(ctx context.Context) {
	mode := w.Mode()
	w.logger.Info("game started", zap.Stringer("mode", mode))

	err := w.strategy.OnGameStart(ctx, mode)
	if err != nil {
		w.logger.Warn("start action failed", zap.Error(err))
	}
	metrics.IncEdge(string(domain.EdgeStarted))
	metrics.RecordAction(w.strategy.Name(), "start", err)
	w.record(domain.EdgeStarted, mode.String(), err)
}

func (w *ProcessWatcher) onStop(ctx context.Context) {
	w.logger.Info("game stopped")

	err := w.strategy.OnGameStop(ctx)
	if err != nil {
		w.logger.Warn("stop action failed", zap.Error(err))
	}
	metrics.IncEdge(string(domain.EdgeStopped))
	metrics.RecordAction(w.strategy.Name(), "stop", err)
	w.record(domain.EdgeStopped, "", err)
}

func (w *ProcessWatcher) record(kind domain.EdgeKind, mode string, actionErr error) {
	if w.history == nil {
		return
	}
	event := domain.SessionEvent{
		Kind:     kind,
		Process:  w.target.Value,
		Strategy: w.strategy.Name(),
		Mode:     mode,
		At:       time.Now(),
	}
	if actionErr != nil {
		event.Error = actionErr.Error()
	}
	if err := w.history.Record(event); err != nil {
		w.logger.Warn("failed to record session event", zap.Error(err))
	}
}

// Ensure ProcessWatcher implements domain.Watcher.
var _ domain.Watcher = (*ProcessWatcher)(nil)
