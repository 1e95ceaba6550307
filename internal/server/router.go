// Package server exposes the watcher registry over a local HTTP control API.
package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
	"github.com/eliteGoblin/focusd/disp_mon/internal/metrics"
)

// WatcherService is the command-dispatch surface the API drives.
type WatcherService interface {
	Toggle() (bool, error)
	IsWatching() bool
	IsGameRunning() bool
	Watcher() domain.Watcher
	ScanMonitors() (map[string]string, error)
	Monitors() map[string]string
	SelectMonitor(name string) error
}

// Router serves the control API.
// Endpoints (under /api):
//
//	GET  /status               instance summary
//	POST /watch/toggle         start or stop watching
//	GET  /watch/status
//	GET  /game/status
//	POST /monitors/scan        re-enumerate active outputs
//	GET  /monitors             last scan
//	POST /monitors/select      body: {"name": "..."}
//	GET  /display/current
//	GET  /display/modes
//	POST /display/restore
//	GET  /history              query: limit=n
//
// plus GET /metrics.
type Router struct {
	service  WatcherService
	display  domain.DisplayController
	history  domain.HistoryStore
	execMode string
	version  string
	logger   *zap.Logger
}

// NewRouter constructs a Router. display and history may be nil when the
// platform has no display backend or history is disabled.
func NewRouter(
	service WatcherService,
	display domain.DisplayController,
	history domain.HistoryStore,
	execMode, version string,
	logger *zap.Logger,
) *Router {
	return &Router{
		service:  service,
		display:  display,
		history:  history,
		execMode: execMode,
		version:  version,
		logger:   logger,
	}
}

// Handler returns an http.Handler powered by gin.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery(), r.requestLogger())

	api := g.Group(APIBase)
	api.GET("/status", r.handleStatus)
	api.POST("/watch/toggle", r.handleToggle)
	api.GET("/watch/status", r.handleWatchStatus)
	api.GET("/game/status", r.handleGameStatus)
	api.POST("/monitors/scan", r.handleScanMonitors)
	api.GET("/monitors", r.handleMonitors)
	api.POST("/monitors/select", r.handleSelectMonitor)
	api.GET("/display/current", r.handleCurrentMode)
	api.GET("/display/modes", r.handleModes)
	api.POST("/display/restore", r.handleRestore)
	api.GET("/history", r.handleHistory)

	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// Listen binds addr and serves the router in the background. The bound
// address is returned so ":0" can be used in tests.
func Listen(addr string, handler http.Handler, logger *zap.Logger) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("control API stopped", zap.Error(err))
		}
	}()

	logger.Info("control API listening", zap.String("addr", ln.Addr().String()))
	return srv, ln.Addr(), nil
}

func (r *Router) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		r.logger.Debug("control request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// --- Handlers ---

func (r *Router) handleStatus(c *gin.Context) {
	resp := StatusResponse{
		Watching: r.service.IsWatching(),
		Running:  r.service.IsGameRunning(),
		ExecMode: r.execMode,
		Version:  r.version,
	}
	if w := r.service.Watcher(); w != nil {
		mode := w.Mode()
		resp.Target = w.Target().Value
		resp.Mode = &mode
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleToggle(c *gin.Context) {
	watching, err := r.service.Toggle()
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, WatchResponse{Watching: watching})
}

func (r *Router) handleWatchStatus(c *gin.Context) {
	c.JSON(http.StatusOK, WatchResponse{Watching: r.service.IsWatching()})
}

func (r *Router) handleGameStatus(c *gin.Context) {
	c.JSON(http.StatusOK, GameResponse{Running: r.service.IsGameRunning()})
}

func (r *Router) handleScanMonitors(c *gin.Context) {
	monitors, err := r.service.ScanMonitors()
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MonitorsResponse{Monitors: monitors})
}

func (r *Router) handleMonitors(c *gin.Context) {
	c.JSON(http.StatusOK, MonitorsResponse{Monitors: r.service.Monitors()})
}

func (r *Router) handleSelectMonitor(c *gin.Context) {
	var req SelectMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := r.service.SelectMonitor(req.Name); err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (r *Router) handleCurrentMode(c *gin.Context) {
	if r.display == nil {
		r.fail(c, domain.ErrUnsupportedPlatform)
		return
	}
	mode, err := r.display.CurrentMode()
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mode)
}

func (r *Router) handleModes(c *gin.Context) {
	if r.display == nil {
		r.fail(c, domain.ErrUnsupportedPlatform)
		return
	}
	modes, err := r.display.Modes()
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ModesResponse{Modes: modes})
}

func (r *Router) handleRestore(c *gin.Context) {
	if r.display == nil {
		r.fail(c, domain.ErrUnsupportedPlatform)
		return
	}
	if err := r.display.RestoreDefaults(); err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (r *Router) handleHistory(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	if r.history == nil {
		c.JSON(http.StatusOK, HistoryResponse{Events: []domain.SessionEvent{}})
		return
	}
	events, err := r.history.Recent(limit)
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Events: events})
}

func (r *Router) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		r.logger.Warn("control request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrGamePathUnset),
		errors.Is(err, domain.ErrMonitorNotFound),
		errors.Is(err, domain.ErrModeNotFound):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedPlatform):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrChangeFailed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
