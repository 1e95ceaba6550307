package topology

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// mockCommandRunner records invocations and returns scripted output.
type mockCommandRunner struct {
	calls  []string
	output []byte
	err    error
}

func (m *mockCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := m.Output(ctx, name, args...)
	return err
}

func (m *mockCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, name+" "+strings.Join(args, " "))
	return m.output, m.err
}

func TestController_Scan(t *testing.T) {
	runner := &mockCommandRunner{output: []byte(twoMonitors)}
	c := NewControllerWithDeps("", runner, PnputilParser{}, zap.NewNop())

	monitors, err := c.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, monitors, 2)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "cmd /c chcp 437 > nul && pnputil /enum-devices /class Monitor", runner.calls[0])
}

func TestController_ScanDriftReturnsEmpty(t *testing.T) {
	runner := &mockCommandRunner{output: []byte("Status: Started\n")}
	c := NewControllerWithDeps("", runner, PnputilParser{}, zap.NewNop())

	monitors, err := c.Scan(context.Background())
	assert.ErrorIs(t, err, domain.ErrParseDrift)
	assert.NotNil(t, monitors)
	assert.Empty(t, monitors)
}

func TestController_ScanCommandError(t *testing.T) {
	runner := &mockCommandRunner{err: errors.New("exec: not found")}
	c := NewControllerWithDeps("", runner, PnputilParser{}, zap.NewNop())

	_, err := c.Scan(context.Background())
	assert.Error(t, err)
}

func TestController_DisableEnable(t *testing.T) {
	runner := &mockCommandRunner{}
	c := NewControllerWithDeps("pnputil.exe", runner, PnputilParser{}, zap.NewNop())

	c.Disable(context.Background(), `DISPLAY\GSM5B7F\1`)
	c.Enable(context.Background(), `DISPLAY\GSM5B7F\1`)

	assert.Equal(t, []string{
		`pnputil.exe /disable-device DISPLAY\GSM5B7F\1 /force`,
		`pnputil.exe /enable-device DISPLAY\GSM5B7F\1 /force`,
	}, runner.calls)
}

func TestController_DisableFailureIsSwallowed(t *testing.T) {
	runner := &mockCommandRunner{output: []byte("Access is denied."), err: errors.New("exit status 5")}
	c := NewControllerWithDeps("", runner, PnputilParser{}, zap.NewNop())

	assert.NotPanics(t, func() {
		c.Disable(context.Background(), "X")
	})
	assert.Len(t, runner.calls, 1)
}
