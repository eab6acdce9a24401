// Package overlay is the screen overlay side of hybrid mode: a local HTTP
// endpoint that receives pushed values and a tray menu that shows them.
package overlay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/relay"
)

// Overlay holds the last hybrid-mode value the overlay was told about.
type Overlay struct {
	clock clock.Clock
	log   zerolog.Logger

	mu        sync.RWMutex
	hybrid    bool
	updatedAt time.Time
	listeners []func(bool, time.Time)
}

// New creates an overlay starting at initial.
func New(initial bool, clk clock.Clock, logger zerolog.Logger) *Overlay {
	if clk == nil {
		clk = clock.New()
	}
	return &Overlay{
		clock:  clk,
		log:    logger.With().Str("component", "overlay").Logger(),
		hybrid: initial,
	}
}

// HybridMode returns the current value and when it was last set. The time
// is zero until the first update.
func (o *Overlay) HybridMode() (bool, time.Time) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.hybrid, o.updatedAt
}

// Set records a new value and notifies listeners. Repeated values still
// count as an update.
func (o *Overlay) Set(v bool) {
	now := o.clock.Now()

	o.mu.Lock()
	o.hybrid = v
	o.updatedAt = now
	listeners := append([]func(bool, time.Time){}, o.listeners...)
	o.mu.Unlock()

	o.log.Debug().Bool("hybrid_mode", v).Msg("overlay updated")
	for _, fn := range listeners {
		fn(v, now)
	}
}

// OnChange registers fn to run after every Set.
func (o *Overlay) OnChange(fn func(bool, time.Time)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

type configResponse struct {
	HybridMode bool   `json:"hybridMode"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// ServeHTTP handles GET and POST /config.
func (o *Overlay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		o.writeConfig(w)
	case http.MethodPost:
		var update relay.OverlayUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		o.Set(update.HybridMode)
		o.writeConfig(w)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (o *Overlay) writeConfig(w http.ResponseWriter) {
	v, at := o.HybridMode()
	resp := configResponse{HybridMode: v}
	if !at.IsZero() {
		resp.UpdatedAt = at.Format(time.RFC3339)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Handler returns the overlay HTTP routes.
func (o *Overlay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/config", o)
	return mux
}
