package gesture

import (
	"sync"
	"testing"

	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/tracking"
)

func TestLibrary_Replace(t *testing.T) {
	lib := NewLibrary()
	if lib.Len() != 0 {
		t.Fatalf("expected empty library, got %d", lib.Len())
	}

	lib.Replace([]*Template{
		staticTemplate("thumbs-up", tracking.ThumbsUp(), 0.5),
		{ID: "swipe", Type: TypeDynamic, Path: PathFromFrames(swipe(30, 0.8, 0.2, 0.5)), Tolerance: 1},
	})
	if lib.Len() != 2 {
		t.Errorf("expected 2 templates, got %d", lib.Len())
	}

	lib.Replace(nil)
	if lib.Len() != 0 {
		t.Errorf("expected empty library after replace, got %d", lib.Len())
	}
	if _, ok := lib.MatchWindow([]landmark.Frame{tracking.ThumbsUp()}); ok {
		t.Error("expected no match from empty library")
	}
}

func TestLibrary_MatchWindow_Static(t *testing.T) {
	lib := NewLibrary()
	lib.Replace([]*Template{
		staticTemplate("thumbs-up", tracking.ThumbsUp(), 0.5),
		staticTemplate("palm", tracking.OpenPalm(), 0.5),
	})

	window := make([]landmark.Frame, 30)
	for i := range window {
		window[i] = tracking.OpenPalm()
	}
	window[29] = tracking.ThumbsUp()

	m, ok := lib.MatchWindow(window)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Template.ID != "thumbs-up" {
		t.Errorf("expected last frame to decide the static match, got %q", m.Template.ID)
	}
}

func TestLibrary_MatchWindow_Dynamic(t *testing.T) {
	lib := NewLibrary()
	lib.Replace([]*Template{
		{ID: "swipe-left", Type: TypeDynamic, Path: PathFromFrames(swipe(20, 0.8, 0.2, 0.5)), Tolerance: 0.5},
	})

	m, ok := lib.MatchWindow(swipe(30, 0.8, 0.2, 0.5))
	if !ok {
		t.Fatal("expected swipe to match")
	}
	if m.Template.ID != "swipe-left" {
		t.Errorf("expected 'swipe-left', got %q", m.Template.ID)
	}

	if _, ok := lib.MatchWindow(swipe(minPathPoints-1, 0.8, 0.2, 0.5)); ok {
		t.Error("expected short window to skip dynamic matching")
	}
}

func TestLibrary_ConcurrentUse(t *testing.T) {
	lib := NewLibrary()
	templates := []*Template{staticTemplate("thumbs-up", tracking.ThumbsUp(), 0.5)}
	window := []landmark.Frame{tracking.ThumbsUp()}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			lib.Replace(templates)
		}()
		go func() {
			defer wg.Done()
			lib.MatchWindow(window)
		}()
	}
	wg.Wait()

	if lib.Len() != 1 {
		t.Errorf("expected 1 template, got %d", lib.Len())
	}
}

func TestPathFromFrames(t *testing.T) {
	frames := swipe(3, 0, 1, 0.5)

	path := PathFromFrames(frames)

	if len(path) != 3 {
		t.Fatalf("expected 3 points, got %d", len(path))
	}
	if path[1].X != 0.5 || path[1].Y != 0.5 || path[1].Timestamp != 33 {
		t.Errorf("expected (0.5, 0.5, 33), got %+v", path[1])
	}
}
