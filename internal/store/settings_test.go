package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestSettingsRepository_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Settings().Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSettingsRepository_SetOverwrites(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if err := repo.Set("theme", "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set("theme", "light"); err != nil {
		t.Fatalf("second Set() error = %v", err)
	}

	got, err := repo.Get("theme")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "light" {
		t.Errorf("expected last write 'light', got %q", got)
	}
}

func TestSettingsRepository_Bool(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	t.Run("missing key returns default", func(t *testing.T) {
		got, err := repo.GetBool(KeyHybridMode, true)
		if err != nil {
			t.Fatalf("GetBool() error = %v", err)
		}
		if !got {
			t.Error("expected default true")
		}
	})

	t.Run("stored value wins over default", func(t *testing.T) {
		if err := repo.SetBool(KeyHybridMode, false); err != nil {
			t.Fatalf("SetBool() error = %v", err)
		}
		got, err := repo.GetBool(KeyHybridMode, true)
		if err != nil {
			t.Fatalf("GetBool() error = %v", err)
		}
		if got {
			t.Error("expected stored false")
		}
	})

	t.Run("unparseable value returns default and error", func(t *testing.T) {
		if err := repo.Set("broken", "maybe"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := repo.GetBool("broken", true)
		if err == nil {
			t.Error("expected parse error")
		}
		if !got {
			t.Error("expected default on parse error")
		}
	})
}

func TestSettingsRepository_SharedBetweenStores(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shared.db")

	a, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to open first store: %v", err)
	}
	defer a.Close()
	b, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to open second store: %v", err)
	}
	defer b.Close()

	if err := a.Settings().SetBool(KeyHybridMode, true); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}

	got, err := b.Settings().GetBool(KeyHybridMode, false)
	if err != nil {
		t.Fatalf("GetBool() error = %v", err)
	}
	if !got {
		t.Error("second store should observe the first store's write")
	}
}
