package gesture

import (
	"sync"

	"github.com/ayusman/mudra/internal/landmark"
)

// Library holds the active templates and matches whole windows against
// them. It is safe for concurrent use.
type Library struct {
	mu      sync.RWMutex
	static  *StaticMatcher
	dynamic *DynamicMatcher
	count   int
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{
		static:  NewStaticMatcher(),
		dynamic: NewDynamicMatcher(),
	}
}

// Replace swaps the full template set.
func (l *Library) Replace(templates []*Template) {
	static := NewStaticMatcher()
	dynamic := NewDynamicMatcher()
	for _, t := range templates {
		switch t.Type {
		case TypeStatic:
			static.AddTemplate(t)
		case TypeDynamic:
			dynamic.AddTemplate(t)
		}
	}

	l.mu.Lock()
	l.static = static
	l.dynamic = dynamic
	l.count = len(templates)
	l.mu.Unlock()
}

// Len returns the number of templates.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// MatchWindow compares the last frame against static templates and the
// fingertip path of the whole window against dynamic ones. The best score
// across both kinds wins.
func (l *Library) MatchWindow(frames []landmark.Frame) (Match, bool) {
	if len(frames) == 0 {
		return Match{}, false
	}

	l.mu.RLock()
	static, dynamic := l.static, l.dynamic
	l.mu.RUnlock()

	var candidates []Match
	candidates = append(candidates, static.Match(frames[len(frames)-1])...)
	candidates = append(candidates, dynamic.Match(frames)...)
	if len(candidates) == 0 {
		return Match{}, false
	}

	sortMatches(candidates)
	return candidates[0], true
}

// PathFromFrames extracts the index fingertip trajectory of a window.
func PathFromFrames(frames []landmark.Frame) []PathPoint {
	path := make([]PathPoint, len(frames))
	for i, f := range frames {
		tip := f.Landmarks[landmark.IndexTip]
		path[i] = PathPoint{X: tip.X, Y: tip.Y, Timestamp: f.Timestamp}
	}
	return path
}
