// Package api provides the HTTP handlers of the reference gesture backend.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/store"
)

// DefaultTolerance applies when a gesture is created without one.
const DefaultTolerance = 0.15

// GestureHandler serves the template catalog.
type GestureHandler struct {
	store   *store.Store
	catalog *Catalog
	log     zerolog.Logger
}

// NewGestureHandler creates a new GestureHandler with the given store.
func NewGestureHandler(s *store.Store, c *Catalog, logger zerolog.Logger) *GestureHandler {
	return &GestureHandler{
		store:   s,
		catalog: c,
		log:     logger.With().Str("component", "gestures").Logger(),
	}
}

// ServeHTTP routes /api/gestures and /api/gestures/{id}.
func (h *GestureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/gestures"), "/")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type actionBinding struct {
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config,omitempty"`
}

type createGestureRequest struct {
	Name       string              `json:"name"`
	Type       string              `json:"type"`
	Tolerance  float64             `json:"tolerance"`
	AppContext string              `json:"app_context"`
	Landmarks  []landmark.Point    `json:"landmarks,omitempty"`
	Path       []gesture.PathPoint `json:"path,omitempty"`
	Action     *actionBinding      `json:"action,omitempty"`
}

type updateGestureRequest struct {
	Name       string  `json:"name"`
	Tolerance  float64 `json:"tolerance"`
	AppContext string  `json:"app_context"`
}

type gestureResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Tolerance  float64 `json:"tolerance"`
	AppContext string  `json:"app_context"`
	Action     string  `json:"action,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type listGesturesResponse struct {
	Gestures []gestureResponse `json:"gestures"`
}

type errorResponse struct {
	Error string `json:"error"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func (h *GestureHandler) toResponse(g *store.Gesture) (gestureResponse, error) {
	resp := gestureResponse{
		ID:         g.ID,
		Name:       g.Name,
		Type:       string(g.Type),
		Tolerance:  g.Tolerance,
		AppContext: g.AppContext,
		CreatedAt:  g.CreatedAt.Format(timeLayout),
		UpdatedAt:  g.UpdatedAt.Format(timeLayout),
	}
	action, err := h.store.Actions().GetByGestureID(g.ID)
	if err != nil {
		return resp, err
	}
	if action != nil {
		resp.Action = action.ActionName
	}
	return resp, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// reload refreshes the match library after a catalog change.
func (h *GestureHandler) reload() {
	if err := h.catalog.Reload(); err != nil {
		h.log.Error().Err(err).Msg("catalog reload failed")
	}
}

func validType(t store.GestureType) bool {
	return t == store.GestureTypeStatic || t == store.GestureTypeDynamic
}

func (h *GestureHandler) list(w http.ResponseWriter, r *http.Request) {
	gestures, err := h.store.Gestures().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list gestures")
		return
	}

	response := listGesturesResponse{
		Gestures: make([]gestureResponse, 0, len(gestures)),
	}
	for _, g := range gestures {
		resp, err := h.toResponse(g)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list gestures")
			return
		}
		response.Gestures = append(response.Gestures, resp)
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *GestureHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	g, err := h.store.Gestures().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Gesture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get gesture")
		return
	}

	resp, err := h.toResponse(g)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get gesture")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *GestureHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createGestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	gestureType := store.GestureType(req.Type)
	if gestureType == "" {
		gestureType = store.GestureTypeStatic
	}
	if !validType(gestureType) {
		writeError(w, http.StatusBadRequest, "Invalid gesture type")
		return
	}
	if req.Landmarks != nil && len(req.Landmarks) != landmark.NumLandmarks {
		writeError(w, http.StatusBadRequest, "Landmarks must hold 21 points")
		return
	}
	if req.Action != nil && (req.Action.PluginName == "" || req.Action.ActionName == "") {
		writeError(w, http.StatusBadRequest, "Action needs plugin_name and action_name")
		return
	}

	tolerance := req.Tolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}

	g := &store.Gesture{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Type:       gestureType,
		Tolerance:  tolerance,
		AppContext: req.AppContext,
	}

	gestures := h.store.Gestures()
	if err := gestures.Create(g); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create gesture")
		return
	}

	var err error
	switch {
	case gestureType == store.GestureTypeStatic && len(req.Landmarks) > 0:
		err = gestures.SetLandmarks(g.ID, toStoredLandmarks(req.Landmarks))
	case gestureType == store.GestureTypeDynamic && len(req.Path) > 0:
		err = gestures.SetPath(g.ID, toStoredPath(req.Path))
	}
	if err == nil && req.Action != nil {
		err = h.store.Actions().Create(&store.Action{
			ID:         uuid.New().String(),
			GestureID:  g.ID,
			PluginName: req.Action.PluginName,
			ActionName: req.Action.ActionName,
			Config:     req.Action.Config,
			Enabled:    true,
		})
	}
	if err != nil {
		gestures.Delete(g.ID)
		writeError(w, http.StatusInternalServerError, "Failed to create gesture")
		return
	}

	h.reload()
	h.log.Info().Str("gesture", g.ID).Str("name", g.Name).Str("app_context", g.AppContext).Msg("gesture created")

	resp, err := h.toResponse(g)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create gesture")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *GestureHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	g, err := h.store.Gestures().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Gesture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get gesture")
		return
	}

	var req updateGestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != "" {
		g.Name = req.Name
	}
	if req.Tolerance != 0 {
		g.Tolerance = req.Tolerance
	}
	if req.AppContext != "" {
		g.AppContext = req.AppContext
	}

	if err := h.store.Gestures().Update(g); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update gesture")
		return
	}
	h.reload()

	resp, err := h.toResponse(g)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update gesture")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *GestureHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Gestures().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Gesture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete gesture")
		return
	}
	h.reload()

	w.WriteHeader(http.StatusNoContent)
}
