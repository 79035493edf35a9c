package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ayusman/handcontrol/internal/app"
	"github.com/ayusman/handcontrol/internal/arbiter"
	"github.com/ayusman/handcontrol/internal/gesture"
	"github.com/ayusman/handcontrol/internal/plugin"
)

type fakeController struct {
	status app.Status
}

func (f *fakeController) Status() app.Status { return f.status }

func (f *fakeController) SetEnabled(enabled bool) { f.status.Enabled = enabled }

func TestStateHandler_Get(t *testing.T) {
	ctrl := &fakeController{status: app.Status{
		Snapshot: gesture.Snapshot{
			State:         gesture.Engaged,
			FixProgress:   1,
			Anchor:        &gesture.Point{X: 320, Y: 240},
			CurrentTarget: "next",
			Targets: []gesture.TargetView{
				{ID: "next", State: gesture.TargetInside, Progress: 0.5},
			},
		},
		Hand:       arbiter.Right,
		Frozen:     true,
		Enabled:    true,
		LastTarget: "previous",
	}}
	handler := NewStateHandler(ctrl)

	rec := serve(handler, http.MethodGet, "/api/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	want := map[string]any{
		"state":          "engaged",
		"hand":           "right",
		"frozen":         true,
		"enabled":        true,
		"current_target": "next",
		"last_target":    "previous",
		"fix_progress":   1.0,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}

	targets, ok := got["targets"].([]any)
	if !ok || len(targets) != 1 {
		t.Fatalf("targets = %v, want one entry", got["targets"])
	}
	if target := targets[0].(map[string]any); target["state"] != "inside" {
		t.Errorf("target state = %v, want inside", target["state"])
	}
}

func TestStateHandler_Put(t *testing.T) {
	ctrl := &fakeController{status: app.Status{Enabled: true}}
	handler := NewStateHandler(ctrl)

	rec := serve(handler, http.MethodPut, "/api/state", map[string]any{"enabled": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ctrl.status.Enabled {
		t.Error("expected controller to be disabled")
	}

	for _, body := range []any{"{", map[string]any{}} {
		rec := serve(handler, http.MethodPut, "/api/state", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %v: expected status %d, got %d", body, http.StatusBadRequest, rec.Code)
		}
	}

	rec = serve(handler, http.MethodPost, "/api/state", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

type fakeLister []*plugin.Plugin

func (f fakeLister) List() []*plugin.Plugin { return f }

func TestPluginHandler(t *testing.T) {
	handler := NewPluginHandler(fakeLister{
		{Manifest: plugin.Manifest{Name: "keyboard", Version: "1.0.0", Actions: []string{"keystroke", "shortcut"}}},
	})

	rec := serve(handler, http.MethodGet, "/api/plugins", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listPluginsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Plugins) != 1 || response.Plugins[0].Name != "keyboard" || len(response.Plugins[0].Actions) != 2 {
		t.Errorf("unexpected plugins %+v", response.Plugins)
	}

	rec = serve(handler, http.MethodPost, "/api/plugins", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
