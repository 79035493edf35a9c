package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/ayusman/handcontrol/internal/store"
)

func recordActivations(t *testing.T, s *store.Store, start time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := s.Activations().Record(&store.Activation{
			TargetID:    "next",
			TargetName:  "next",
			ConfirmedAt: start.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
}

func TestActivationHandler_List(t *testing.T) {
	s := newTestStore(t)
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	recordActivations(t, s, start, 60)
	handler := NewActivationHandler(s)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"default limit", "/api/activations", DefaultActivationLimit},
		{"explicit limit", "/api/activations?limit=5", 5},
		{"limit above count", "/api/activations?limit=100", 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(handler, http.MethodGet, tt.path, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
			}
			var response listActivationsResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if len(response.Activations) != tt.want {
				t.Fatalf("expected %d activations, got %d", tt.want, len(response.Activations))
			}
			newest := response.Activations[0]
			if !newest.ConfirmedAt.Equal(start.Add(59 * time.Minute)) {
				t.Errorf("expected newest first, got %v", newest.ConfirmedAt)
			}
			if newest.Status != store.StatusQueued {
				t.Errorf("Status = %q, want queued", newest.Status)
			}
		})
	}
}

func TestActivationHandler_ListEmpty(t *testing.T) {
	handler := NewActivationHandler(newTestStore(t))

	rec := serve(handler, http.MethodGet, "/api/activations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body := rec.Body.String(); body != "{\"activations\":[]}\n" {
		t.Errorf("expected an empty array, got %s", body)
	}
}

func TestActivationHandler_BadLimit(t *testing.T) {
	handler := NewActivationHandler(newTestStore(t))

	for _, limit := range []string{"0", "-3", "ten"} {
		rec := serve(handler, http.MethodGet, "/api/activations?limit="+limit, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected status %d, got %d", limit, http.StatusBadRequest, rec.Code)
		}
	}
}

func TestActivationHandler_Prune(t *testing.T) {
	s := newTestStore(t)
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	recordActivations(t, s, start, 10)
	handler := NewActivationHandler(s)

	before := start.Add(4 * time.Minute).Format(time.RFC3339)
	rec := serve(handler, http.MethodDelete, "/api/activations?before="+before, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response pruneResponse
	json.NewDecoder(rec.Body).Decode(&response)
	if response.Deleted != 4 {
		t.Errorf("Deleted = %d, want 4", response.Deleted)
	}

	left, _ := s.Activations().List(0)
	if len(left) != 6 {
		t.Errorf("expected 6 activations left, got %d", len(left))
	}

	for _, q := range []string{"", "?before=yesterday"} {
		rec := serve(handler, http.MethodDelete, "/api/activations"+q, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%q: expected status %d, got %d", q, http.StatusBadRequest, rec.Code)
		}
	}
}
