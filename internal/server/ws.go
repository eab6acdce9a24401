package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/tracking"
)

const writeTimeout = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LandmarksHandler broadcasts tracking batches to WebSocket clients in the
// stream wire format.
type LandmarksHandler struct {
	source tracking.Source
	fps    int
	clock  clock.Clock
	log    zerolog.Logger

	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewLandmarksHandler creates a feed for src. Call Run to start ticking.
func NewLandmarksHandler(src tracking.Source, fps int, clk clock.Clock, logger zerolog.Logger) *LandmarksHandler {
	if clk == nil {
		clk = clock.New()
	}
	return &LandmarksHandler{
		source:  src,
		fps:     fps,
		clock:   clk,
		log:     logger.With().Str("component", "landmarks").Logger(),
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LandmarksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		h.log.Debug().Str("remote", r.RemoteAddr).Msg("client disconnected")
	}()

	// Reads only detect the close; clients never send data.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *LandmarksHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run ticks the source and broadcasts every batch until ctx is done.
func (h *LandmarksHandler) Run(ctx context.Context) {
	tracking.Play(ctx, h.source, h.fps, h.clock, h.Broadcast)
}

// Broadcast sends one batch to every client. Clients that fail a write
// are closed.
func (h *LandmarksHandler) Broadcast(b landmark.Batch) {
	h.mu.RLock()
	if len(h.clients) == 0 {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	msg, err := json.Marshal(landmark.NewMessage(b.Frames))
	if err != nil {
		h.log.Error().Err(err).Msg("encode batch")
		return
	}

	var failed []*websocket.Conn
	h.mu.RLock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range failed {
		conn.Close()
	}
}
