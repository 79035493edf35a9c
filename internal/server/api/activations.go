package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/handcontrol/internal/store"
)

// Activation listing limits.
const (
	DefaultActivationLimit = 50
	MaxActivationLimit     = 1000
)

// ActivationHandler serves the activation history.
type ActivationHandler struct {
	store *store.Store
}

// NewActivationHandler creates a new ActivationHandler with the given store.
func NewActivationHandler(s *store.Store) *ActivationHandler {
	return &ActivationHandler{store: s}
}

type listActivationsResponse struct {
	Activations []*store.Activation `json:"activations"`
}

type pruneResponse struct {
	Deleted int64 `json:"deleted"`
}

// ServeHTTP handles GET /api/activations?limit=N and
// DELETE /api/activations?before=RFC3339.
func (h *ActivationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodDelete:
		h.prune(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *ActivationHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultActivationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxActivationLimit)
	}

	activations, err := h.store.Activations().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list activations")
		return
	}
	if activations == nil {
		activations = []*store.Activation{}
	}

	writeJSON(w, http.StatusOK, listActivationsResponse{Activations: activations})
}

func (h *ActivationHandler) prune(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("before")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "before is required")
		return
	}
	before, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "before must be an RFC 3339 timestamp")
		return
	}

	n, err := h.store.Activations().DeleteBefore(before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete activations")
		return
	}

	writeJSON(w, http.StatusOK, pruneResponse{Deleted: n})
}
