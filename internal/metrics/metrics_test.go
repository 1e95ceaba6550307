package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIdempotentAndHelpersWork(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))

	IncEdge("started")
	IncEdge("started")
	IncEdge("stopped")
	RecordAction("display", "start", nil)
	RecordAction("display", "stop", errors.New("driver failed"))
	ObservePoll(0.004)
	IncPollError()
	SetWatching(true)
	SetGameRunning(false)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
		switch mf.GetName() {
		case "dispmon_watcher_edges_total":
			for _, m := range mf.GetMetric() {
				if m.GetLabel()[0].GetValue() == "started" {
					assert.Equal(t, float64(2), m.GetCounter().GetValue())
				}
			}
		case "dispmon_watcher_watching":
			assert.Equal(t, float64(1), mf.GetMetric()[0].GetGauge().GetValue())
		case "dispmon_watcher_game_running":
			assert.Equal(t, float64(0), mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	for _, want := range []string{
		"dispmon_watcher_edges_total",
		"dispmon_strategy_actions_total",
		"dispmon_watcher_poll_duration_seconds",
		"dispmon_watcher_poll_errors_total",
		"dispmon_watcher_watching",
		"dispmon_watcher_game_running",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}

func TestHelpersNoOpBeforeRegister(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(pollErrors))
	before := gatherCounter(t, reg, "dispmon_watcher_poll_errors_total")

	IncPollError()

	assert.Equal(t, before, gatherCounter(t, reg, "dispmon_watcher_poll_errors_total"))
}

func gatherCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestHandlerServesMetrics(t *testing.T) {
	regOK.Store(false)
	require.NoError(t, Register(prometheus.DefaultRegisterer))

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	IncEdge("stopped")

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dispmon_watcher_edges_total")
}
