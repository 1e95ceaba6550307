package topology

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
	"github.com/eliteGoblin/focusd/disp_mon/internal/infra"
)

// DefaultTool is the device-management utility invoked by default.
const DefaultTool = "pnputil"

// ControllerImpl implements domain.TopologyController over pnputil.
type ControllerImpl struct {
	tool   string
	runner infra.CommandRunner
	parser Parser
	logger *zap.Logger
}

// NewController creates a controller running the real tool.
func NewController(tool string, logger *zap.Logger) *ControllerImpl {
	return NewControllerWithDeps(tool, &infra.RealCommandRunner{}, PnputilParser{}, logger)
}

// NewControllerWithDeps creates a controller with injectable dependencies (for testing)
func NewControllerWithDeps(tool string, runner infra.CommandRunner, parser Parser, logger *zap.Logger) *ControllerImpl {
	if tool == "" {
		tool = DefaultTool
	}
	return &ControllerImpl{
		tool:   tool,
		runner: runner,
		parser: parser,
		logger: logger,
	}
}

// Scan lists monitor-class devices. The console code page is forced to 437
// so field labels come out in English regardless of the system locale.
func (c *ControllerImpl) Scan(ctx context.Context) ([]domain.DeviceMonitor, error) {
	script := fmt.Sprintf("chcp 437 > nul && %s /enum-devices /class Monitor", c.tool)
	out, err := c.runner.Output(ctx, "cmd", "/c", script)
	if err != nil {
		return nil, fmt.Errorf("enumerate monitor devices: %w", err)
	}

	monitors, err := c.parser.Parse(out)
	if err != nil {
		c.logger.Error("device tool output not recognized", zap.Error(err))
		return []domain.DeviceMonitor{}, err
	}

	c.logger.Debug("scanned monitor devices", zap.Int("count", len(monitors)))
	return monitors, nil
}

// Disable turns a monitor device off. Failures are logged only.
func (c *ControllerImpl) Disable(ctx context.Context, instanceID string) {
	c.invoke(ctx, "/disable-device", instanceID)
}

// Enable turns a monitor device back on. Failures are logged only.
func (c *ControllerImpl) Enable(ctx context.Context, instanceID string) {
	c.invoke(ctx, "/enable-device", instanceID)
}

func (c *ControllerImpl) invoke(ctx context.Context, verb, instanceID string) {
	out, err := c.runner.Output(ctx, c.tool, verb, instanceID, "/force")
	if err != nil {
		c.logger.Warn("monitor device command failed",
			zap.String("verb", verb),
			zap.String("instance_id", instanceID),
			zap.String("output", strings.TrimSpace(string(out))),
			zap.Error(err))
		return
	}
	c.logger.Info("monitor device command done",
		zap.String("verb", verb),
		zap.String("instance_id", instanceID))
}

// Ensure ControllerImpl implements domain.TopologyController.
var _ domain.TopologyController = (*ControllerImpl)(nil)
