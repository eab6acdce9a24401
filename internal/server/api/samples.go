package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/store"
)

// SamplesHandler trains a gesture from recorded windows.
type SamplesHandler struct {
	store   *store.Store
	catalog *Catalog
	trainer *gesture.Trainer
	log     zerolog.Logger
}

// NewSamplesHandler creates a new SamplesHandler with the given store.
func NewSamplesHandler(s *store.Store, c *Catalog, logger zerolog.Logger) *SamplesHandler {
	return &SamplesHandler{
		store:   s,
		catalog: c,
		trainer: gesture.NewTrainer(),
		log:     logger.With().Str("component", "samples").Logger(),
	}
}

// ServeHTTP handles /api/gestures/{id}/samples.
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r.URL.Path, "samples")
	if !ok {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPost:
		h.train(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// itemID extracts {id} from /api/gestures/{id}/{suffix}.
func itemID(path, suffix string) (string, bool) {
	parts := strings.Split(strings.TrimPrefix(path, "/api/gestures/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != suffix {
		return "", false
	}
	return parts[0], true
}

type trainRequest struct {
	Recordings [][]landmark.Frame `json:"recordings"`
}

type templateResponse struct {
	GestureID string              `json:"gesture_id"`
	Type      string              `json:"type"`
	Samples   int                 `json:"samples"`
	Landmarks []landmark.Point    `json:"landmarks,omitempty"`
	Path      []gesture.PathPoint `json:"path,omitempty"`
}

func (h *SamplesHandler) lookup(w http.ResponseWriter, id string) (*store.Gesture, bool) {
	g, err := h.store.Gestures().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Gesture not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get gesture")
		return nil, false
	}
	return g, true
}

func (h *SamplesHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	g, ok := h.lookup(w, id)
	if !ok {
		return
	}

	resp := templateResponse{GestureID: g.ID, Type: string(g.Type)}
	gestures := h.store.Gestures()

	n, err := h.store.Samples().Count(g.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count samples")
		return
	}
	resp.Samples = n

	stored, err := gestures.GetLandmarks(g.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	if len(stored) > 0 {
		resp.Landmarks = fromStoredLandmarks(stored)
	}

	path, err := gestures.GetPath(g.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	if len(path) > 0 {
		resp.Path = fromStoredPath(path)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *SamplesHandler) train(w http.ResponseWriter, r *http.Request, id string) {
	g, ok := h.lookup(w, id)
	if !ok {
		return
	}

	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// No recordings retrains from the stored ones.
	retrain := len(req.Recordings) == 0
	if retrain {
		stored, err := h.storedRecordings(g.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load samples")
			return
		}
		req.Recordings = stored
	}

	resp := templateResponse{GestureID: g.ID, Type: string(g.Type), Samples: len(req.Recordings)}
	var err error

	switch g.Type {
	case store.GestureTypeStatic:
		resp.Landmarks, err = h.trainer.TrainStatic(req.Recordings)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		err = h.store.Gestures().SetLandmarks(g.ID, toStoredLandmarks(resp.Landmarks))
	case store.GestureTypeDynamic:
		resp.Path, err = h.trainer.TrainDynamic(req.Recordings)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		err = h.store.Gestures().SetPath(g.ID, toStoredPath(resp.Path))
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store template")
		return
	}

	if !retrain {
		if err := h.saveRecordings(g.ID, req.Recordings); err != nil {
			h.log.Warn().Err(err).Str("gesture", g.ID).Msg("failed to keep training samples")
		}
	}

	if err := h.catalog.Reload(); err != nil {
		h.log.Error().Err(err).Msg("catalog reload failed")
	}
	h.log.Info().Str("gesture", g.ID).Int("recordings", len(req.Recordings)).Msg("gesture trained")

	writeJSON(w, http.StatusOK, resp)
}

func (h *SamplesHandler) saveRecordings(id string, recordings [][]landmark.Frame) error {
	samples := make([]json.RawMessage, 0, len(recordings))
	for _, rec := range recordings {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		samples = append(samples, data)
	}
	return h.store.Samples().Replace(id, samples)
}

func (h *SamplesHandler) storedRecordings(id string) ([][]landmark.Frame, error) {
	samples, err := h.store.Samples().GetByGestureID(id)
	if err != nil {
		return nil, err
	}
	recordings := make([][]landmark.Frame, 0, len(samples))
	for _, s := range samples {
		var frames []landmark.Frame
		if err := json.Unmarshal(s.Data, &frames); err != nil {
			return nil, err
		}
		recordings = append(recordings, frames)
	}
	return recordings, nil
}
