package server

import "github.com/eliteGoblin/focusd/disp_mon/internal/domain"

// APIBase is the path prefix of the control API.
const APIBase = "/api"

type ErrorResponse struct {
	Error string `json:"error"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type WatchResponse struct {
	Watching bool `json:"watching"`
}

type GameResponse struct {
	Running bool `json:"running"`
}

type MonitorsResponse struct {
	Monitors map[string]string `json:"monitors"`
}

type SelectMonitorRequest struct {
	Name string `json:"name"`
}

type ModesResponse struct {
	Modes []domain.DisplayMode `json:"modes"`
}

type HistoryResponse struct {
	Events []domain.SessionEvent `json:"events"`
}

// StatusResponse summarizes the running instance for `dispmon status`.
type StatusResponse struct {
	Watching bool                `json:"watching"`
	Running  bool                `json:"running"`
	Target   string              `json:"target,omitempty"`
	Mode     *domain.DisplayMode `json:"mode,omitempty"`
	ExecMode string              `json:"exec_mode"`
	Version  string              `json:"version"`
}
