package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/handcontrol/internal/plugin"
	"github.com/ayusman/handcontrol/internal/store"
)

// Resolver checks that a plugin exposes an action.
type Resolver interface {
	Resolve(name, action string) (*plugin.Plugin, error)
}

// TargetHandler handles HTTP requests for target resources.
type TargetHandler struct {
	store       *store.Store
	defaultHold time.Duration
	onChange    func() error
	resolver    Resolver
}

// NewTargetHandler creates a TargetHandler. Time-based targets created
// without a hold get defaultHold. onChange, when set, runs after every
// successful write.
func NewTargetHandler(s *store.Store, defaultHold time.Duration, onChange func() error) *TargetHandler {
	return &TargetHandler{store: s, defaultHold: defaultHold, onChange: onChange}
}

// WithResolver makes the handler reject actions no plugin provides.
func (h *TargetHandler) WithResolver(r Resolver) *TargetHandler {
	h.resolver = r
	return h
}

// ServeHTTP routes /api/targets and /api/targets/{id}.
func (h *TargetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/targets")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

// targetBody is the writable part of a target. Hold travels as
// milliseconds.
type targetBody struct {
	Name       string          `json:"name"`
	Shape      string          `json:"shape"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Radius     float64         `json:"radius"`
	Width      float64         `json:"width"`
	Height     float64         `json:"height"`
	Policy     string          `json:"policy"`
	HoldMS     int64           `json:"hold_ms"`
	PressDepth float64         `json:"press_depth"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config,omitempty"`
	Position   int             `json:"position"`
	Enabled    *bool           `json:"enabled,omitempty"`
}

type targetResponse struct {
	ID string `json:"id"`
	targetBody
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type listTargetsResponse struct {
	Targets []targetResponse `json:"targets"`
}

func bodyFrom(t *store.Target) targetBody {
	enabled := t.Enabled
	return targetBody{
		Name:       t.Name,
		Shape:      string(t.Shape),
		X:          t.X,
		Y:          t.Y,
		Radius:     t.Radius,
		Width:      t.Width,
		Height:     t.Height,
		Policy:     string(t.Policy),
		HoldMS:     t.Hold.Milliseconds(),
		PressDepth: t.PressDepth,
		PluginName: t.PluginName,
		ActionName: t.ActionName,
		Config:     t.Config,
		Position:   t.Position,
		Enabled:    &enabled,
	}
}

func toResponse(t *store.Target) targetResponse {
	return targetResponse{
		ID:         t.ID,
		targetBody: bodyFrom(t),
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  t.UpdatedAt.Format(time.RFC3339),
	}
}

// apply copies b onto t.
func (b *targetBody) apply(t *store.Target) {
	t.Name = strings.TrimSpace(b.Name)
	t.Shape = store.Shape(b.Shape)
	t.X, t.Y = b.X, b.Y
	t.Radius = b.Radius
	t.Width, t.Height = b.Width, b.Height
	t.Policy = store.PolicyKind(b.Policy)
	t.Hold = time.Duration(b.HoldMS) * time.Millisecond
	t.PressDepth = b.PressDepth
	t.PluginName = b.PluginName
	t.ActionName = b.ActionName
	t.Config = b.Config
	t.Position = b.Position
	t.Enabled = b.Enabled == nil || *b.Enabled
}

// validate reports the first problem with t as a client-facing message.
func (h *TargetHandler) validate(t *store.Target) error {
	if t.Name == "" {
		return errors.New("Name is required")
	}

	switch t.Shape {
	case store.ShapeCircle:
		if t.Radius <= 0 {
			return errors.New("Circle targets need a positive radius")
		}
	case store.ShapeRect:
		if t.Width <= 0 || t.Height <= 0 {
			return errors.New("Rect targets need a positive width and height")
		}
	default:
		return fmt.Errorf("Invalid shape %q", t.Shape)
	}

	switch t.Policy {
	case store.PolicyTime:
		if t.Hold < 0 {
			return errors.New("hold_ms must not be negative")
		}
	case store.PolicyDepth:
		if t.PressDepth < 0 {
			return errors.New("press_depth must not be negative")
		}
	default:
		return fmt.Errorf("Invalid policy %q", t.Policy)
	}

	if len(t.Config) > 0 && !json.Valid(t.Config) {
		return errors.New("config must be valid JSON")
	}

	if (t.PluginName == "") != (t.ActionName == "") {
		return errors.New("plugin_name and action_name must be set together")
	}
	if t.PluginName != "" && h.resolver != nil {
		if _, err := h.resolver.Resolve(t.PluginName, t.ActionName); err != nil {
			return err
		}
	}
	return nil
}

func (h *TargetHandler) changed() {
	if h.onChange == nil {
		return
	}
	if err := h.onChange(); err != nil {
		log.Error().Err(err).Msg("failed to reload target layout")
	}
}

// list handles GET /api/targets.
func (h *TargetHandler) list(w http.ResponseWriter, r *http.Request) {
	targets, err := h.store.Targets().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list targets")
		return
	}

	response := listTargetsResponse{
		Targets: make([]targetResponse, 0, len(targets)),
	}
	for _, t := range targets {
		response.Targets = append(response.Targets, toResponse(t))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/targets/{id}.
func (h *TargetHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	target, err := h.store.Targets().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Target not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get target")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(target))
}

// create handles POST /api/targets.
func (h *TargetHandler) create(w http.ResponseWriter, r *http.Request) {
	body := targetBody{Shape: string(store.ShapeRect), Policy: string(store.PolicyTime)}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	target := &store.Target{ID: uuid.New().String()}
	body.apply(target)
	if target.Policy == store.PolicyTime && target.Hold == 0 {
		target.Hold = h.defaultHold
	}

	if err := h.validate(target); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Targets().Create(target); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create target")
		return
	}
	h.changed()

	writeJSON(w, http.StatusCreated, toResponse(target))
}

// update handles PUT /api/targets/{id}. Fields missing from the body keep
// their stored values.
func (h *TargetHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	target, err := h.store.Targets().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Target not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get target")
		return
	}

	body := bodyFrom(target)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	body.apply(target)

	if err := h.validate(target); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Targets().Update(target); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update target")
		return
	}
	h.changed()

	writeJSON(w, http.StatusOK, toResponse(target))
}

// delete handles DELETE /api/targets/{id}.
func (h *TargetHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Targets().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Target not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete target")
		return
	}
	h.changed()

	w.WriteHeader(http.StatusNoContent)
}
