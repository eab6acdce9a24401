package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/backend"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/pipeline"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracking"
)

const (
	token    = "e2e-token"
	keynote  = "com.apple.Keynote"
	waitTime = 10 * time.Second
)

type statusLog struct {
	mu     sync.Mutex
	events []pipeline.Status
	signal chan struct{}
}

func newStatusLog() *statusLog {
	return &statusLog{signal: make(chan struct{}, 1)}
}

func (l *statusLog) Status(s pipeline.Status) {
	l.mu.Lock()
	l.events = append(l.events, s)
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// waitFor blocks until a status of kind arrives.
func (l *statusLog) waitFor(t *testing.T, kind pipeline.StatusKind) pipeline.Status {
	t.Helper()
	return l.waitAfter(t, kind, 0)
}

// waitAfter blocks until more than seen statuses of kind have arrived and
// returns the newest.
func (l *statusLog) waitAfter(t *testing.T, kind pipeline.StatusKind, seen int) pipeline.Status {
	t.Helper()
	deadline := time.After(waitTime)
	for {
		l.mu.Lock()
		n := 0
		for _, s := range l.events {
			if s.Kind == kind {
				n++
				if n > seen {
					l.mu.Unlock()
					return s
				}
			}
		}
		l.mu.Unlock()

		select {
		case <-l.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %s status", kind)
		}
	}
}

func (l *statusLog) count(kind pipeline.StatusKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range l.events {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

type stack struct {
	backendURL string
	streamURL  string
}

// startBackend runs the reference backend streaming a constant thumbs-up
// pose, with one app-control plugin and one thumbs-up gesture bound to it.
func startBackend(t *testing.T) stack {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell plugins need a POSIX shell")
	}

	pluginDir := t.TempDir()
	dir := filepath.Join(pluginDir, "app-control")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"app-control","version":"1.0.0","executable":"run.sh","actions":["activate"]}`
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat >/dev/null\necho '{\"success\":true,\"window_switched\":true,\"window_title\":\"Slides\"}'\n"
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	s, err := store.New(filepath.Join(t.TempDir(), "backend.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	plugins := plugin.NewManager(pluginDir, zerolog.Nop())
	if err := plugins.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	srv, err := server.New(server.Config{
		Store:    s,
		Plugins:  plugins,
		Executor: plugin.NewExecutor(5 * time.Second),
		Token:    token,
		Source:   tracking.NewScripted([]landmark.Frame{tracking.ThumbsUp()}),
		FPS:      100,
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Run(ctx)

	pose := tracking.ThumbsUp().Normalize()
	body, _ := json.Marshal(map[string]any{
		"name":        "thumbs-up",
		"type":        "static",
		"tolerance":   0.5,
		"app_context": keynote,
		"landmarks":   pose.Landmarks[:],
		"action":      map[string]any{"plugin_name": "app-control", "action_name": "activate"},
	})
	resp, err := http.Post(ts.URL+"/api/gestures", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/gestures error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	return stack{
		backendURL: ts.URL,
		streamURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/landmarks",
	}
}

func startClient(t *testing.T, st stack, activeContext string, status pipeline.StatusSink) *app.App {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	a, err := app.New(app.Config{
		Store:         s,
		Backend:       backend.New(st.backendURL, token, 5*time.Second),
		StreamURL:     st.streamURL,
		ActiveContext: activeContext,
		QuietPeriod:   200 * time.Millisecond,
		Logger:        zerolog.Nop(),
		Status:        status,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(a.Close)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return a
}

func TestE2E_GestureExecutesInActiveContext(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	st := startBackend(t)
	log := newStatusLog()
	startClient(t, st, keynote, log)

	log.waitFor(t, pipeline.StatusConnected)
	executed := log.waitFor(t, pipeline.StatusExecuted)

	if executed.Gesture == nil || executed.Gesture.Name != "thumbs-up" {
		t.Fatalf("expected thumbs-up executed, got %+v", executed)
	}
	if executed.Message != "Executed thumbs-up in Slides" {
		t.Errorf("unexpected message %q", executed.Message)
	}
	if log.count(pipeline.StatusSwitchContext) != 0 {
		t.Error("expected no switch-context status in the gesture's own context")
	}
}

func TestE2E_GestureInOtherContextAsksToSwitch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	st := startBackend(t)
	log := newStatusLog()
	startClient(t, st, "com.apple.Safari", log)

	switched := log.waitFor(t, pipeline.StatusSwitchContext)

	if switched.Gesture == nil || switched.Gesture.AppContext != keynote {
		t.Fatalf("expected match reported for %s, got %+v", keynote, switched)
	}
	if log.count(pipeline.StatusExecuted) != 0 {
		t.Error("expected nothing executed outside the gesture's context")
	}
}

func TestE2E_EditorSuppressesMatching(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	st := startBackend(t)
	log := newStatusLog()
	a := startClient(t, st, keynote, log)

	log.waitFor(t, pipeline.StatusConnected)

	ctx := context.Background()
	if err := a.Editor().Enter(ctx); err != nil {
		t.Fatalf("Enter() error = %v", err)
	}
	if a.State().HybridMode() {
		t.Fatal("expected hybrid mode off while editing")
	}
	// let a match already in flight settle
	time.Sleep(200 * time.Millisecond)
	before := log.count(pipeline.StatusExecuted)
	time.Sleep(500 * time.Millisecond)
	if got := log.count(pipeline.StatusExecuted); got != before {
		t.Errorf("expected no executions while editing, got %d new", got-before)
	}

	if err := a.Editor().Exit(ctx); err != nil {
		t.Fatalf("Exit() error = %v", err)
	}
	log.waitAfter(t, pipeline.StatusExecuted, before)
}
