package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/backend"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// ExecuteHandler runs the plugin action bound to a gesture.
type ExecuteHandler struct {
	store    *store.Store
	plugins  *plugin.Manager
	executor *plugin.Executor
	log      zerolog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(s *store.Store, plugins *plugin.Manager, executor *plugin.Executor, logger zerolog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		store:    s,
		plugins:  plugins,
		executor: executor,
		log:      logger.With().Str("component", "execute").Logger(),
	}
}

// ServeHTTP handles POST /api/gestures/{id}/execute. Plugin failures are
// reported in the body with status 200; only request problems use error
// status codes.
func (h *ExecuteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r.URL.Path, "execute")
	if !ok {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	g, err := h.store.Gestures().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, backend.ExecuteResult{Error: "Gesture not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, backend.ExecuteResult{Error: "Failed to get gesture"})
		return
	}

	result := h.execute(r, g)
	level := zerolog.InfoLevel
	if !result.Success {
		level = zerolog.WarnLevel
	}
	h.log.WithLevel(level).
		Str("gesture", g.Name).
		Str("action", result.ActionName).
		Bool("success", result.Success).
		Bool("app_not_found", result.AppNotFound).
		Str("error", result.Error).
		Msg("gesture executed")

	writeJSON(w, http.StatusOK, result)
}

func (h *ExecuteHandler) execute(r *http.Request, g *store.Gesture) backend.ExecuteResult {
	result := backend.ExecuteResult{Context: g.AppContext}

	action, err := h.store.Actions().GetByGestureID(g.ID)
	if err != nil {
		result.Error = "Failed to get action"
		return result
	}
	if action == nil || !action.Enabled {
		result.Error = "No action bound to gesture"
		return result
	}
	result.ActionName = action.ActionName

	p, err := h.plugins.Get(action.PluginName)
	if errors.Is(err, plugin.ErrPluginNotFound) {
		result.AppNotFound = true
		result.Error = fmt.Sprintf("plugin %q is not installed", action.PluginName)
		return result
	}
	if !p.Manifest.Supports(action.ActionName) {
		result.Error = fmt.Sprintf("plugin %q has no action %q", action.PluginName, action.ActionName)
		return result
	}

	resp, err := h.executor.Execute(r.Context(), p, &plugin.Request{
		Action:     action.ActionName,
		Gesture:    g.Name,
		AppContext: g.AppContext,
		Config:     action.Config,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = resp.Success
	result.Error = resp.Error
	result.WindowSwitched = resp.WindowSwitched
	result.WindowTitle = resp.WindowTitle
	result.AppNotFound = resp.AppNotFound
	return result
}
