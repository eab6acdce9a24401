package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/store"
)

// ActionHandler manages the plugin action bound to a gesture.
type ActionHandler struct {
	store   *store.Store
	catalog *Catalog
}

// NewActionHandler creates a new ActionHandler with the given store.
func NewActionHandler(s *store.Store, c *Catalog) *ActionHandler {
	return &ActionHandler{store: s, catalog: c}
}

// ServeHTTP handles /api/gestures/{id}/action.
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r.URL.Path, "action")
	if !ok {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	if _, err := h.store.Gestures().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Gesture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get gesture")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.put(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type actionResponse struct {
	ID         string          `json:"id"`
	GestureID  string          `json:"gesture_id"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

// toActionResponse converts a store.Action to an actionResponse.
func toActionResponse(a *store.Action) actionResponse {
	config := a.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	return actionResponse{
		ID:         a.ID,
		GestureID:  a.GestureID,
		PluginName: a.PluginName,
		ActionName: a.ActionName,
		Config:     config,
		Enabled:    a.Enabled,
		CreatedAt:  a.CreatedAt.Format(timeLayout),
	}
}

func (h *ActionHandler) get(w http.ResponseWriter, r *http.Request, gestureID string) {
	a, err := h.store.Actions().GetByGestureID(gestureID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get action")
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "No action bound")
		return
	}
	writeJSON(w, http.StatusOK, toActionResponse(a))
}

// put replaces the binding of the gesture.
func (h *ActionHandler) put(w http.ResponseWriter, r *http.Request, gestureID string) {
	var req struct {
		actionBinding
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.PluginName == "" || req.ActionName == "" {
		writeError(w, http.StatusBadRequest, "plugin_name and action_name are required")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	a := &store.Action{
		ID:         uuid.New().String(),
		GestureID:  gestureID,
		PluginName: req.PluginName,
		ActionName: req.ActionName,
		Config:     req.Config,
		Enabled:    enabled,
	}

	actions := h.store.Actions()
	if err := actions.DeleteByGestureID(gestureID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to replace action")
		return
	}
	if err := actions.Create(a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to replace action")
		return
	}
	h.catalog.Reload()

	writeJSON(w, http.StatusOK, toActionResponse(a))
}

func (h *ActionHandler) delete(w http.ResponseWriter, r *http.Request, gestureID string) {
	if err := h.store.Actions().DeleteByGestureID(gestureID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete action")
		return
	}
	h.catalog.Reload()

	w.WriteHeader(http.StatusNoContent)
}
