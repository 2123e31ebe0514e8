package controller

import (
	"net/http"

	"github.com/cassiomorais/storesync/internal/connectivity"
	"github.com/cassiomorais/storesync/internal/infrastructure/config"
)

// ConnectivityController exposes the reachability signal. In manual mode
// the host app pushes its platform network state through PUT.
type ConnectivityController struct {
	monitor *connectivity.Broadcaster
	mode    string
}

func NewConnectivityController(monitor *connectivity.Broadcaster, mode string) *ConnectivityController {
	if mode == "" {
		mode = config.ConnectivityManual
	}
	return &ConnectivityController{monitor: monitor, mode: mode}
}

// Get handles GET /api/v1/connectivity
func (h *ConnectivityController) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ConnectivityResponse{Online: h.monitor.Online(), Mode: h.mode})
}

// Set handles PUT /api/v1/connectivity
func (h *ConnectivityController) Set(w http.ResponseWriter, r *http.Request) {
	if h.mode != config.ConnectivityManual {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "connectivity is probed from the backend and cannot be set",
			Code:  "connectivity_probed",
		})
		return
	}

	var req ConnectivityRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	h.monitor.Set(*req.Online)
	writeJSON(w, http.StatusOK, ConnectivityResponse{Online: h.monitor.Online(), Mode: h.mode})
}
