package store

import (
	"errors"
	"testing"
)

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if _, err := repo.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := repo.Set("theme", "dark"); err != nil {
		t.Fatalf("failed to set: %v", err)
	}
	if err := repo.Set("theme", "light"); err != nil {
		t.Fatalf("failed to overwrite: %v", err)
	}

	got, err := repo.Get("theme")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got != "light" {
		t.Errorf("expected light, got %s", got)
	}
}

func TestSettingsRepository_Bool(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	enabled, err := repo.GetBool(SettingEnabled, true)
	if err != nil || !enabled {
		t.Errorf("GetBool on unset key = %v, %v; want default true", enabled, err)
	}

	if err := repo.SetBool(SettingEnabled, false); err != nil {
		t.Fatalf("failed to set bool: %v", err)
	}
	enabled, err = repo.GetBool(SettingEnabled, true)
	if err != nil || enabled {
		t.Errorf("GetBool = %v, %v; want false", enabled, err)
	}

	if err := repo.Set("broken", "maybe"); err != nil {
		t.Fatalf("failed to set: %v", err)
	}
	if _, err := repo.GetBool("broken", false); err == nil {
		t.Error("expected a parse error for a non-boolean value")
	}
}
