package gesture

import (
	"math"

	"github.com/ayusman/mudra/internal/landmark"
)

// minPathPoints is the shortest fingertip path worth comparing.
const minPathPoints = 10

// dynamicTemplate keeps a template's path already scaled to the unit box.
type dynamicTemplate struct {
	*Template
	unit []PathPoint
}

// DynamicMatcher compares the index fingertip path of a window against
// dynamic templates with dynamic time warping.
type DynamicMatcher struct {
	templates []dynamicTemplate
}

// NewDynamicMatcher creates an empty matcher.
func NewDynamicMatcher() *DynamicMatcher {
	return &DynamicMatcher{}
}

// AddTemplate registers a dynamic template. Static templates and templates
// without a path are ignored.
func (m *DynamicMatcher) AddTemplate(t *Template) {
	if t == nil || t.Type != TypeDynamic || len(t.Path) == 0 {
		return
	}
	m.templates = append(m.templates, dynamicTemplate{Template: t, unit: unitPath(t.Path)})
}

// Len returns the number of registered templates.
func (m *DynamicMatcher) Len() int {
	return len(m.templates)
}

// Match returns the templates within tolerance of the window's fingertip
// path, best first. Windows shorter than minPathPoints never match.
func (m *DynamicMatcher) Match(window []landmark.Frame) []Match {
	if len(window) < minPathPoints || len(m.templates) == 0 {
		return nil
	}

	path := unitPath(PathFromFrames(window))

	var matches []Match
	for _, t := range m.templates {
		distance := warpDistance(path, t.unit)
		if distance > t.Tolerance {
			continue
		}
		matches = append(matches, Match{
			Template: t.Template,
			Score:    score(distance),
			Distance: distance,
		})
	}

	sortMatches(matches)
	return matches
}

// warpDistance is the DTW cost of aligning a with b, divided by the longer
// length. Either path empty gives +Inf.
func warpDistance(a, b []PathPoint) float64 {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1)
	}

	// two rolling rows of the (len(a)+1) x (len(b)+1) cost matrix
	prev := make([]float64, len(b)+1)
	cur := make([]float64, len(b)+1)
	for j := range prev {
		prev[j] = math.Inf(1)
	}
	prev[0] = 0

	for i := 1; i <= len(a); i++ {
		cur[0] = math.Inf(1)
		for j := 1; j <= len(b); j++ {
			cur[j] = planarDistance(a[i-1], b[j-1]) + min(prev[j], cur[j-1], prev[j-1])
		}
		prev, cur = cur, prev
	}

	return prev[len(b)] / float64(max(len(a), len(b)))
}

func planarDistance(a, b PathPoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// unitPath scales a path into [0,1] on each axis independently. A flat
// axis collapses to 0. Timestamps are kept.
func unitPath(path []PathPoint) []PathPoint {
	if len(path) == 0 {
		return nil
	}

	lo, hi := path[0], path[0]
	for _, p := range path[1:] {
		lo.X, hi.X = min(lo.X, p.X), max(hi.X, p.X)
		lo.Y, hi.Y = min(lo.Y, p.Y), max(hi.Y, p.Y)
	}

	out := make([]PathPoint, len(path))
	for i, p := range path {
		out[i] = PathPoint{
			X:         unitScale(p.X, lo.X, hi.X),
			Y:         unitScale(p.Y, lo.Y, hi.Y),
			Timestamp: p.Timestamp,
		}
	}
	return out
}

func unitScale(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}
