package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/backend"
	"github.com/ayusman/mudra/internal/store"
)

// MatchHandler evaluates one frame window against the catalog.
type MatchHandler struct {
	catalog  *Catalog
	settings *store.SettingsRepository
	log      zerolog.Logger
}

// NewMatchHandler creates a new MatchHandler.
func NewMatchHandler(c *Catalog, s *store.Store, logger zerolog.Logger) *MatchHandler {
	return &MatchHandler{
		catalog:  c,
		settings: s.Settings(),
		log:      logger.With().Str("component", "match").Logger(),
	}
}

// ServeHTTP handles POST /api/gestures/match. Matching is skipped while a
// gesture is being recorded or when there is nothing to match against.
func (h *MatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req backend.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Frames) == 0 {
		writeError(w, http.StatusBadRequest, "No frames")
		return
	}

	recording, err := h.settings.GetBool(store.KeyRecordingState, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read recording state")
		return
	}
	lib := h.catalog.Library()
	if recording || lib.Len() == 0 {
		h.log.Debug().Bool("recording", recording).Int("templates", lib.Len()).Msg("match skipped")
		writeJSON(w, http.StatusOK, backend.MatchResult{})
		return
	}

	m, ok := lib.MatchWindow(req.Frames)
	if !ok {
		writeJSON(w, http.StatusOK, backend.MatchResult{})
		return
	}

	h.log.Debug().Str("gesture", m.Template.Name).Float64("similarity", m.Score).Msg("window matched")
	writeJSON(w, http.StatusOK, backend.MatchResult{
		Matched: true,
		Gesture: &backend.GestureRef{
			ID:         m.Template.ID,
			Name:       m.Template.Name,
			Action:     m.Template.Action,
			AppContext: m.Template.AppContext,
		},
		Similarity: m.Score,
	})
}
