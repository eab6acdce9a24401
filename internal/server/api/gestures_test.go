package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracking"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func newGestureHandler(t *testing.T) (*GestureHandler, *store.Store, *Catalog) {
	t.Helper()
	s := newTestStore(t)
	c := NewCatalog(s, zerolog.Nop())
	return NewGestureHandler(s, c, zerolog.Nop()), s, c
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGestureHandler_List(t *testing.T) {
	handler, s, _ := newGestureHandler(t)

	g := &store.Gesture{ID: "g1", Name: "thumbs_up", Type: store.GestureTypeStatic, Tolerance: 0.15, AppContext: "com.apple.Keynote"}
	if err := s.Gestures().Create(g); err != nil {
		t.Fatalf("failed to create gesture: %v", err)
	}

	rec := do(t, handler, http.MethodGet, "/api/gestures", nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response listGesturesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Gestures) != 1 {
		t.Fatalf("expected 1 gesture, got %d", len(response.Gestures))
	}
	if response.Gestures[0].AppContext != "com.apple.Keynote" {
		t.Errorf("expected app context com.apple.Keynote, got %q", response.Gestures[0].AppContext)
	}
}

func TestGestureHandler_List_Empty(t *testing.T) {
	handler, _, _ := newGestureHandler(t)

	rec := do(t, handler, http.MethodGet, "/api/gestures", nil)

	var response listGesturesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Gestures == nil || len(response.Gestures) != 0 {
		t.Errorf("expected empty non-nil list, got %v", response.Gestures)
	}
}

func TestGestureHandler_Create(t *testing.T) {
	handler, s, c := newGestureHandler(t)
	pose := tracking.ThumbsUp().Normalize()

	rec := do(t, handler, http.MethodPost, "/api/gestures", map[string]any{
		"name":        "thumbs_up",
		"app_context": "com.spotify.client",
		"landmarks":   pose.Landmarks[:],
		"action":      map[string]any{"plugin_name": "app-control", "action_name": "activate"},
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var response gestureResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ID == "" {
		t.Error("expected non-empty ID")
	}
	if response.Type != "static" || response.Tolerance != DefaultTolerance {
		t.Errorf("expected static defaults, got type %q tolerance %f", response.Type, response.Tolerance)
	}
	if response.Action != "activate" {
		t.Errorf("expected action 'activate', got %q", response.Action)
	}

	stored, err := s.Gestures().GetLandmarks(response.ID)
	if err != nil || len(stored) != landmark.NumLandmarks {
		t.Errorf("expected %d stored landmarks, got %d (%v)", landmark.NumLandmarks, len(stored), err)
	}
	if c.Library().Len() != 1 {
		t.Errorf("expected catalog reloaded with 1 template, got %d", c.Library().Len())
	}
}

func TestGestureHandler_Create_Validation(t *testing.T) {
	handler, _, _ := newGestureHandler(t)

	tests := []struct {
		name string
		body any
	}{
		{"invalid json", "{not json"},
		{"missing name", map[string]any{"type": "static"}},
		{"invalid type", map[string]any{"name": "x", "type": "wobbly"}},
		{"short landmarks", map[string]any{"name": "x", "landmarks": []landmark.Point{{X: 1}}}},
		{"incomplete action", map[string]any{"name": "x", "action": map[string]any{"plugin_name": "p"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, handler, http.MethodPost, "/api/gestures", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}
}

func TestGestureHandler_Get(t *testing.T) {
	handler, s, _ := newGestureHandler(t)
	if err := s.Gestures().Create(&store.Gesture{ID: "g1", Name: "wave", Type: store.GestureTypeDynamic, Tolerance: 0.3}); err != nil {
		t.Fatal(err)
	}

	rec := do(t, handler, http.MethodGet, "/api/gestures/g1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var response gestureResponse
	json.NewDecoder(rec.Body).Decode(&response)
	if response.Name != "wave" || response.AppContext != store.DefaultAppContext {
		t.Errorf("unexpected gesture %+v", response)
	}

	rec = do(t, handler, http.MethodGet, "/api/gestures/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestGestureHandler_Update(t *testing.T) {
	handler, s, _ := newGestureHandler(t)
	if err := s.Gestures().Create(&store.Gesture{ID: "g1", Name: "wave", Type: store.GestureTypeStatic, Tolerance: 0.3}); err != nil {
		t.Fatal(err)
	}

	rec := do(t, handler, http.MethodPut, "/api/gestures/g1", map[string]any{"tolerance": 0.4, "app_context": "com.apple.Safari"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	g, err := s.Gestures().GetByID("g1")
	if err != nil {
		t.Fatal(err)
	}
	if g.Name != "wave" || g.Tolerance != 0.4 || g.AppContext != "com.apple.Safari" {
		t.Errorf("expected partial update, got %+v", g)
	}

	rec = do(t, handler, http.MethodPut, "/api/gestures/missing", map[string]any{"name": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestGestureHandler_Delete(t *testing.T) {
	handler, s, _ := newGestureHandler(t)
	if err := s.Gestures().Create(&store.Gesture{ID: "g1", Name: "wave", Type: store.GestureTypeStatic}); err != nil {
		t.Fatal(err)
	}

	rec := do(t, handler, http.MethodDelete, "/api/gestures/g1", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	rec = do(t, handler, http.MethodDelete, "/api/gestures/g1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestGestureHandler_MethodNotAllowed(t *testing.T) {
	handler, _, _ := newGestureHandler(t)

	if rec := do(t, handler, http.MethodPatch, "/api/gestures", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("collection: expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
	if rec := do(t, handler, http.MethodPost, "/api/gestures/g1", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("item: expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
