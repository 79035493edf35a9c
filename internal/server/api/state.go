package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/handcontrol/internal/app"
)

// Controller is the part of the running app the state endpoint needs.
type Controller interface {
	Status() app.Status
	SetEnabled(enabled bool)
}

// StateHandler exposes the controller status and the enabled switch.
type StateHandler struct {
	ctrl Controller
}

// NewStateHandler creates a StateHandler for ctrl.
func NewStateHandler(ctrl Controller) *StateHandler {
	return &StateHandler{ctrl: ctrl}
}

type updateStateRequest struct {
	Enabled *bool `json:"enabled"`
}

// ServeHTTP handles GET /api/state and PUT /api/state {"enabled": bool}.
func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.ctrl.Status())
	case http.MethodPut:
		var req updateStateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		h.ctrl.SetEnabled(*req.Enabled)
		writeJSON(w, http.StatusOK, h.ctrl.Status())
	default:
		methodNotAllowed(w)
	}
}
