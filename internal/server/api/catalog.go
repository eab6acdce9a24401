package api

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/store"
)

// Catalog keeps the in-memory template library in step with the store.
type Catalog struct {
	store *store.Store
	lib   *gesture.Library
	log   zerolog.Logger
}

// NewCatalog creates a catalog backed by s. Call Reload to populate it.
func NewCatalog(s *store.Store, logger zerolog.Logger) *Catalog {
	return &Catalog{
		store: s,
		lib:   gesture.NewLibrary(),
		log:   logger.With().Str("component", "catalog").Logger(),
	}
}

// Library returns the matchable templates.
func (c *Catalog) Library() *gesture.Library {
	return c.lib
}

// Reload rebuilds the library from the store. Gestures without trained
// landmarks or path are not matchable and are left out.
func (c *Catalog) Reload() error {
	gestures, err := c.store.Gestures().List()
	if err != nil {
		return fmt.Errorf("list gestures: %w", err)
	}

	templates := make([]*gesture.Template, 0, len(gestures))
	for _, g := range gestures {
		t, err := c.template(g)
		if err != nil {
			return fmt.Errorf("load gesture %s: %w", g.ID, err)
		}
		if t != nil {
			templates = append(templates, t)
		}
	}

	c.lib.Replace(templates)
	c.log.Debug().Int("gestures", len(gestures)).Int("templates", len(templates)).Msg("catalog reloaded")
	return nil
}

func (c *Catalog) template(g *store.Gesture) (*gesture.Template, error) {
	t := &gesture.Template{
		ID:         g.ID,
		Name:       g.Name,
		Type:       gesture.Type(g.Type),
		AppContext: g.AppContext,
		Tolerance:  g.Tolerance,
	}

	switch g.Type {
	case store.GestureTypeStatic:
		stored, err := c.store.Gestures().GetLandmarks(g.ID)
		if err != nil {
			return nil, err
		}
		if len(stored) == 0 {
			return nil, nil
		}
		t.Landmarks = fromStoredLandmarks(stored)
	case store.GestureTypeDynamic:
		stored, err := c.store.Gestures().GetPath(g.ID)
		if err != nil {
			return nil, err
		}
		if len(stored) == 0 {
			return nil, nil
		}
		t.Path = fromStoredPath(stored)
	default:
		return nil, nil
	}

	action, err := c.store.Actions().GetByGestureID(g.ID)
	if err != nil {
		return nil, err
	}
	if action != nil {
		t.Action = action.ActionName
	}
	return t, nil
}

func toStoredLandmarks(points []landmark.Point) []store.Landmark {
	out := make([]store.Landmark, len(points))
	for i, p := range points {
		out[i] = store.Landmark{X: p.X, Y: p.Y, Z: p.Z}
	}
	return out
}

func fromStoredLandmarks(stored []store.Landmark) []landmark.Point {
	out := make([]landmark.Point, len(stored))
	for i, l := range stored {
		out[i] = landmark.Point{X: l.X, Y: l.Y, Z: l.Z}
	}
	return out
}

func toStoredPath(path []gesture.PathPoint) []store.PathPoint {
	out := make([]store.PathPoint, len(path))
	for i, p := range path {
		out[i] = store.PathPoint{X: p.X, Y: p.Y, TimestampMs: p.Timestamp}
	}
	return out
}

func fromStoredPath(stored []store.PathPoint) []gesture.PathPoint {
	out := make([]gesture.PathPoint, len(stored))
	for i, p := range stored {
		out[i] = gesture.PathPoint{X: p.X, Y: p.Y, Timestamp: p.TimestampMs}
	}
	return out
}
