// Package stream consumes the hand-tracking WebSocket and turns each message
// into a landmark batch. A dropped connection is redialled after a fixed
// delay for as long as the caller's liveness flag stays set.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/ayusman/mudra/internal/landmark"
)

// DefaultReconnectDelay is the wait between an unexpected close and the redial.
const DefaultReconnectDelay = 3 * time.Second

const writeWait = time.Second

// ErrClosed is returned by Open when the liveness flag is cleared.
var ErrClosed = errors.New("stream closed")

// Handler receives parsed batches in arrival order from a single goroutine.
// An empty batch means the tracking service saw no hand.
type Handler interface {
	HandleBatch(landmark.Batch)
}

// StateListener is optionally implemented by a Handler to observe
// connect and disconnect transitions.
type StateListener interface {
	ConnectionChanged(connected bool)
}

// Config holds the connection settings.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
	// Desired is the liveness flag. It belongs to the caller and is only
	// read here, except that Close clears it.
	Desired *atomic.Bool
	Clock   clock.Clock
	Dialer  *ws.Dialer
	Logger  zerolog.Logger
}

// Conn owns one WebSocket connection to the tracking service.
type Conn struct {
	cfg     Config
	handler Handler

	mu        sync.Mutex
	conn      *ws.Conn
	timer     *clock.Timer
	connected bool

	reconnects metric.Int64Counter
	dropped    metric.Int64Counter
}

// New creates a connection. Nothing is dialled until Open.
func New(cfg Config, h Handler) (*Conn, error) {
	if cfg.URL == "" {
		return nil, errors.New("stream url is required")
	}
	if h == nil {
		return nil, errors.New("stream handler is required")
	}
	if cfg.Desired == nil {
		cfg.Desired = new(atomic.Bool)
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = ws.DefaultDialer
	}

	c := &Conn{cfg: cfg, handler: h}

	m := meter()
	var err error
	c.reconnects, err = m.Int64Counter(
		"mudra.stream.reconnects",
		metric.WithDescription("Reconnect attempts after an unexpected close"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating reconnects counter: %w", err)
	}
	c.dropped, err = m.Int64Counter(
		"mudra.stream.dropped_messages",
		metric.WithDescription("Stream messages dropped as malformed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return c, nil
}

// Open dials the tracking service once. If the dial fails while the
// connection is still desired, a reconnect is scheduled and the dial error
// is returned. Opening an open connection is a no-op.
func (c *Conn) Open(ctx context.Context) error {
	if !c.cfg.Desired.Load() {
		return ErrClosed
	}
	if c.Connected() {
		return nil
	}
	if err := c.dial(ctx); err != nil {
		if !errors.Is(err, ErrClosed) {
			c.scheduleReconnect()
		}
		return err
	}
	return nil
}

// Close clears the liveness flag, cancels any pending reconnect and closes
// the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	c.cfg.Desired.Store(false)

	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if wasConnected {
		c.notifyState(false)
	}

	_ = conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return conn.Close()
}

// Connected reports whether a socket is currently open.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ReconnectPending reports whether a redial is scheduled.
func (c *Conn) ReconnectPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Conn) dial(ctx context.Context) error {
	conn, _, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	c.mu.Lock()
	if !c.cfg.Desired.Load() {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	if c.conn != nil {
		// lost a race with another dial; keep the socket already reading
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.connected = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.cfg.Logger.Info().Str("url", c.cfg.URL).Msg("stream connected")
	c.notifyState(true)

	go c.readLoop(conn)
	return nil
}

// readLoop forwards parsed batches to the handler until the socket fails.
func (c *Conn) readLoop(conn *ws.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}

		batch, err := landmark.Parse(data, c.cfg.Clock.Now())
		if err != nil {
			c.cfg.Logger.Warn().Err(err).Int("bytes", len(data)).Msg("dropping stream message")
			c.dropped.Add(context.Background(), 1)
			continue
		}
		c.handler.HandleBatch(batch)
	}
}

func (c *Conn) handleClose(conn *ws.Conn, err error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()

	if !current {
		return
	}
	conn.Close()
	c.notifyState(false)

	if !c.cfg.Desired.Load() {
		c.cfg.Logger.Debug().Err(err).Msg("stream closed")
		return
	}
	c.cfg.Logger.Warn().Err(err).Dur("delay", c.cfg.ReconnectDelay).Msg("stream closed unexpectedly, reconnecting")
	c.scheduleReconnect()
}

// scheduleReconnect arms the reconnect timer unless one is already pending.
func (c *Conn) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil || !c.cfg.Desired.Load() {
		return
	}
	c.timer = c.cfg.Clock.AfterFunc(c.cfg.ReconnectDelay, c.reconnect)
}

func (c *Conn) reconnect() {
	c.mu.Lock()
	c.timer = nil
	c.mu.Unlock()

	if !c.cfg.Desired.Load() {
		return
	}

	c.reconnects.Add(context.Background(), 1)
	if err := c.dial(context.Background()); err != nil {
		if errors.Is(err, ErrClosed) {
			return
		}
		c.cfg.Logger.Warn().Err(err).Msg("reconnect dial failed")
		c.scheduleReconnect()
	}
}

func (c *Conn) notifyState(connected bool) {
	if l, ok := c.handler.(StateListener); ok {
		l.ConnectionChanged(connected)
	}
}
