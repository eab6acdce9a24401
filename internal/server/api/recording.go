package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/backend"
	"github.com/ayusman/mudra/internal/store"
)

// RecordingStateHandler exposes the recording flag that pauses matching
// while a gesture is authored.
type RecordingStateHandler struct {
	settings *store.SettingsRepository
	token    string
	log      zerolog.Logger
}

// NewRecordingStateHandler creates the handler. An empty token disables
// authentication.
func NewRecordingStateHandler(s *store.Store, token string, logger zerolog.Logger) *RecordingStateHandler {
	return &RecordingStateHandler{
		settings: s.Settings(),
		token:    token,
		log:      logger.With().Str("component", "recording").Logger(),
	}
}

// ServeHTTP handles GET and POST /api/recording-state.
func (h *RecordingStateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPost:
		if !h.authorized(r) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h.set(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *RecordingStateHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

func (h *RecordingStateHandler) get(w http.ResponseWriter, r *http.Request) {
	v, err := h.settings.GetBool(store.KeyRecordingState, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read recording state")
		return
	}
	writeJSON(w, http.StatusOK, backend.RecordingStateRequest{IsRecording: v})
}

func (h *RecordingStateHandler) set(w http.ResponseWriter, r *http.Request) {
	var req backend.RecordingStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.settings.SetBool(store.KeyRecordingState, req.IsRecording); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store recording state")
		return
	}

	h.log.Info().Bool("is_recording", req.IsRecording).Msg("recording state set")
	writeJSON(w, http.StatusOK, req)
}
