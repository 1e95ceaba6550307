package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// DefaultClientTimeout bounds every control request.
const DefaultClientTimeout = 5 * time.Second

// Client talks to a running `dispmon run` instance.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a client for the control API at addr (host:port).
func NewClient(addr string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	return &Client{
		baseURL: "http://" + addr + APIBase,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// IsReachable checks if the instance answers.
func (c *Client) IsReachable(ctx context.Context) bool {
	var resp WatchResponse
	err := c.do(ctx, http.MethodGet, "/watch/status", nil, &resp)
	if err != nil {
		c.logger.Debug("instance unreachable", zap.Error(err))
	}
	return err == nil
}

func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &resp)
	return resp, err
}

func (c *Client) Toggle(ctx context.Context) (bool, error) {
	var resp WatchResponse
	if err := c.do(ctx, http.MethodPost, "/watch/toggle", nil, &resp); err != nil {
		return false, err
	}
	return resp.Watching, nil
}

func (c *Client) IsGameRunning(ctx context.Context) (bool, error) {
	var resp GameResponse
	if err := c.do(ctx, http.MethodGet, "/game/status", nil, &resp); err != nil {
		return false, err
	}
	return resp.Running, nil
}

// ScanMonitors asks the instance to re-enumerate outputs.
func (c *Client) ScanMonitors(ctx context.Context) (map[string]string, error) {
	var resp MonitorsResponse
	if err := c.do(ctx, http.MethodPost, "/monitors/scan", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Monitors, nil
}

// Monitors returns the instance's cached scan.
func (c *Client) Monitors(ctx context.Context) (map[string]string, error) {
	var resp MonitorsResponse
	if err := c.do(ctx, http.MethodGet, "/monitors", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Monitors, nil
}

func (c *Client) SelectMonitor(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/monitors/select", SelectMonitorRequest{Name: name}, &OKResponse{})
}

func (c *Client) RestoreDefaults(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/display/restore", nil, &OKResponse{})
}

func (c *Client) History(ctx context.Context, limit int) ([]domain.SessionEvent, error) {
	path := "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// do sends body as JSON (when non-nil) and decodes a 200 response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.errorFrom(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) errorFrom(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	c.logger.Debug("API request failed", zap.String("error", errResp.Error), zap.Int("status", resp.StatusCode))
	return fmt.Errorf("API error: %s", errResp.Error)
}
