// Package gesture matches landmark windows against stored gesture templates.
// Static templates compare a single normalized pose; dynamic templates
// compare the index fingertip path with dynamic time warping.
package gesture

import (
	"math"
	"sort"

	"github.com/ayusman/mudra/internal/landmark"
)

// Type represents the type of gesture (static or dynamic).
type Type string

const (
	// TypeStatic represents a static gesture (single hand pose).
	TypeStatic Type = "static"
	// TypeDynamic represents a dynamic gesture (motion over time).
	TypeDynamic Type = "dynamic"
)

// Template represents a gesture template for matching.
type Template struct {
	ID         string
	Name       string
	Type       Type
	AppContext string
	Action     string
	Landmarks  []landmark.Point // normalized pose, static only
	Path       []PathPoint      // fingertip path, dynamic only
	Tolerance  float64          // maximum distance for a match
}

// PathPoint represents a point in a dynamic gesture path.
type PathPoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"` // milliseconds
}

// Match represents a matching result between input and a template.
type Match struct {
	Template *Template
	Score    float64 // 1/(1+distance), higher is better
	Distance float64
}

// StaticMatcher matches static hand poses against registered templates.
type StaticMatcher struct {
	templates []*Template
}

// NewStaticMatcher creates a new StaticMatcher instance.
func NewStaticMatcher() *StaticMatcher {
	return &StaticMatcher{
		templates: make([]*Template, 0),
	}
}

// AddTemplate adds a gesture template to the matcher.
func (m *StaticMatcher) AddTemplate(t *Template) {
	if t == nil {
		return
	}
	m.templates = append(m.templates, t)
}

// RemoveTemplate removes a template by its ID.
func (m *StaticMatcher) RemoveTemplate(id string) {
	for i, t := range m.templates {
		if t.ID == id {
			m.templates = append(m.templates[:i], m.templates[i+1:]...)
			return
		}
	}
}

// Match returns the templates within tolerance of the frame's normalized
// pose, best first.
func (m *StaticMatcher) Match(f landmark.Frame) []Match {
	normalized := f.Normalize()
	input := normalized.Landmarks[:]

	var matches []Match
	for _, template := range m.templates {
		if template.Type != TypeStatic || len(template.Landmarks) == 0 {
			continue
		}

		distance := euclideanDistance(input, template.Landmarks)
		if distance <= template.Tolerance {
			matches = append(matches, Match{
				Template: template,
				Score:    score(distance),
				Distance: distance,
			})
		}
	}

	sortMatches(matches)
	return matches
}

func score(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
}

// euclideanDistance sums the distances between corresponding points,
// over the shorter of the two slices.
func euclideanDistance(a, b []landmark.Point) float64 {
	n := min(len(a), len(b))

	var total float64
	for i := 0; i < n; i++ {
		dx := a[i].X - b[i].X
		dy := a[i].Y - b[i].Y
		dz := a[i].Z - b[i].Z
		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return total
}
