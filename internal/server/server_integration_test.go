package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/backend"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracking"
)

const testToken = "secret"

// installPlugin writes a shell plugin that prints response for every run.
func installPlugin(t *testing.T, dir, name, response string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell plugins need a POSIX shell")
	}
	pluginDir := filepath.Join(dir, name)
	if err := os.MkdirAll(pluginDir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := fmt.Sprintf(`{"name":%q,"version":"1.0.0","executable":"run.sh","actions":["activate"]}`, name)
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat >/dev/null\necho '" + response + "'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
}

type testBackend struct {
	store  *store.Store
	server *Server
	ts     *httptest.Server
	client *backend.Client
}

func newTestBackend(t *testing.T, pluginDir string) *testBackend {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	plugins := plugin.NewManager(pluginDir, zerolog.Nop())
	if err := plugins.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	srv := mustNew(t, Config{
		Store:    s,
		Plugins:  plugins,
		Executor: plugin.NewExecutor(5 * time.Second),
		Token:    testToken,
		Logger:   zerolog.Nop(),
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &testBackend{
		store:  s,
		server: srv,
		ts:     ts,
		client: backend.New(ts.URL, testToken, 5*time.Second),
	}
}

func (b *testBackend) createGesture(t *testing.T, body map[string]any) string {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(b.ts.URL+"/api/gestures", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST /api/gestures error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	return created.ID
}

func thumbsUpWindow(n int) []landmark.Frame {
	frames := make([]landmark.Frame, n)
	for i := range frames {
		frames[i] = tracking.ThumbsUp()
	}
	return frames
}

func thumbsUpGesture(appContext, plugin string) map[string]any {
	pose := tracking.ThumbsUp().Normalize()
	return map[string]any{
		"name":        "thumbs-up",
		"type":        "static",
		"tolerance":   0.5,
		"app_context": appContext,
		"landmarks":   pose.Landmarks[:],
		"action":      map[string]any{"plugin_name": plugin, "action_name": "activate"},
	}
}

func TestAPI_MatchAndExecute(t *testing.T) {
	pluginDir := t.TempDir()
	installPlugin(t, pluginDir, "app-control", `{"success":true,"window_switched":true,"window_title":"Slides"}`)
	b := newTestBackend(t, pluginDir)
	ctx := context.Background()

	result, err := b.client.Match(ctx, thumbsUpWindow(30))
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if result.Matched {
		t.Error("expected no match with an empty catalog")
	}

	id := b.createGesture(t, thumbsUpGesture("com.apple.Keynote", "app-control"))

	gestures, err := b.client.ListGestures(ctx)
	if err != nil {
		t.Fatalf("ListGestures() error = %v", err)
	}
	if len(gestures) != 1 || gestures[0].AppContext != "com.apple.Keynote" || gestures[0].Action != "activate" {
		t.Fatalf("unexpected catalog %+v", gestures)
	}

	result, err = b.client.Match(ctx, thumbsUpWindow(30))
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if !result.Matched || result.Gesture.ID != id {
		t.Fatalf("expected thumbs-up match, got %+v", result)
	}
	if result.Gesture.AppContext != "com.apple.Keynote" {
		t.Errorf("expected app context com.apple.Keynote, got %q", result.Gesture.AppContext)
	}
	if result.Similarity < 0.9 {
		t.Errorf("expected high similarity, got %f", result.Similarity)
	}

	exec, err := b.client.Execute(ctx, id)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !exec.Success || !exec.WindowSwitched || exec.WindowTitle != "Slides" {
		t.Errorf("expected successful window switch, got %+v", exec)
	}
	if exec.ActionName != "activate" || exec.Context != "com.apple.Keynote" {
		t.Errorf("expected action and context echoed, got %+v", exec)
	}
}

func TestAPI_RecordingStateSuppressesMatching(t *testing.T) {
	b := newTestBackend(t, t.TempDir())
	ctx := context.Background()
	b.createGesture(t, thumbsUpGesture("", "app-control"))

	if err := b.client.SetRecordingState(ctx, true); err != nil {
		t.Fatalf("SetRecordingState(true) error = %v", err)
	}
	recording, err := b.store.Settings().GetBool(store.KeyRecordingState, false)
	if err != nil || !recording {
		t.Fatalf("expected recording state persisted, got %v, %v", recording, err)
	}

	result, err := b.client.Match(ctx, thumbsUpWindow(30))
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if result.Matched {
		t.Error("expected matching suppressed while recording")
	}

	if err := b.client.SetRecordingState(ctx, false); err != nil {
		t.Fatalf("SetRecordingState(false) error = %v", err)
	}
	result, err = b.client.Match(ctx, thumbsUpWindow(30))
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if !result.Matched {
		t.Error("expected matching to resume after recording ends")
	}
}

func TestAPI_RecordingStateRequiresToken(t *testing.T) {
	b := newTestBackend(t, t.TempDir())

	anon := backend.New(b.ts.URL, "", time.Second)
	if err := anon.SetRecordingState(context.Background(), true); !errors.Is(err, backend.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized without token, got %v", err)
	}
	wrong := backend.New(b.ts.URL, "nope", time.Second)
	if err := wrong.SetRecordingState(context.Background(), true); !errors.Is(err, backend.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized with wrong token, got %v", err)
	}

	recording, _ := b.store.Settings().GetBool(store.KeyRecordingState, false)
	if recording {
		t.Error("expected rejected calls to leave the flag unchanged")
	}
}

func TestAPI_ExecuteFailures(t *testing.T) {
	pluginDir := t.TempDir()
	installPlugin(t, pluginDir, "closed-app", `{"success":false,"app_not_found":true,"error":"Keynote is not running"}`)
	b := newTestBackend(t, pluginDir)
	ctx := context.Background()

	t.Run("app not running", func(t *testing.T) {
		id := b.createGesture(t, map[string]any{
			"name":   "open",
			"action": map[string]any{"plugin_name": "closed-app", "action_name": "activate"},
		})
		exec, err := b.client.Execute(ctx, id)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if exec.Success || !exec.AppNotFound {
			t.Errorf("expected app_not_found, got %+v", exec)
		}
	})

	t.Run("plugin not installed", func(t *testing.T) {
		id := b.createGesture(t, map[string]any{
			"name":   "missing",
			"action": map[string]any{"plugin_name": "ghost", "action_name": "activate"},
		})
		exec, err := b.client.Execute(ctx, id)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if exec.Success || !exec.AppNotFound {
			t.Errorf("expected app_not_found for missing plugin, got %+v", exec)
		}
	})

	t.Run("no action bound", func(t *testing.T) {
		id := b.createGesture(t, map[string]any{"name": "unbound"})
		exec, err := b.client.Execute(ctx, id)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if exec.Success || exec.AppNotFound || exec.Error == "" {
			t.Errorf("expected plain failure, got %+v", exec)
		}
	})

	t.Run("unknown gesture", func(t *testing.T) {
		exec, err := b.client.Execute(ctx, "nope")
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if exec.Success {
			t.Errorf("expected failure, got %+v", exec)
		}
	})
}

func TestAPI_TrainFromRecordings(t *testing.T) {
	b := newTestBackend(t, t.TempDir())
	ctx := context.Background()
	id := b.createGesture(t, map[string]any{"name": "palm", "tolerance": 0.5})

	if n := b.server.Catalog().Library().Len(); n != 0 {
		t.Fatalf("expected untrained gesture to be unmatchable, got %d templates", n)
	}

	body, _ := json.Marshal(map[string]any{
		"recordings": [][]landmark.Frame{
			{tracking.OpenPalm()},
			{tracking.Translate(tracking.OpenPalm(), 0.1, 0)},
		},
	})
	resp, err := http.Post(b.ts.URL+"/api/gestures/"+id+"/samples", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST samples error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST samples status = %d, want 200", resp.StatusCode)
	}

	window := make([]landmark.Frame, 30)
	for i := range window {
		window[i] = tracking.OpenPalm()
	}
	result, err := b.client.Match(ctx, window)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if !result.Matched || result.Gesture.Name != "palm" {
		t.Errorf("expected trained palm to match, got %+v", result)
	}
	if result.Gesture.AppContext != store.DefaultAppContext {
		t.Errorf("expected default app context, got %q", result.Gesture.AppContext)
	}
}

func TestAPI_DeleteRemovesTemplate(t *testing.T) {
	b := newTestBackend(t, t.TempDir())
	id := b.createGesture(t, thumbsUpGesture("", "app-control"))

	req, _ := http.NewRequest(http.MethodDelete, b.ts.URL+"/api/gestures/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", resp.StatusCode)
	}

	result, err := b.client.Match(context.Background(), thumbsUpWindow(30))
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if result.Matched {
		t.Error("expected deleted gesture not to match")
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	b := newTestBackend(t, t.TempDir())

	if err := b.client.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
}
