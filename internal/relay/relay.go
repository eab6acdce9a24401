// Package relay keeps the hybrid-mode flag consistent across execution
// contexts. A write goes to the shared settings store, then to in-process
// listeners, then to every registered Transport. Transports are best-effort:
// their failures are logged and never undo the local write.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ayusman/mudra/internal/store"
)

// DefaultHybridMode is the flag value when nothing has been stored yet.
const DefaultHybridMode = true

// Change describes one write of the flag. At is informational only;
// receivers apply changes in arrival order.
type Change struct {
	Key    string    `json:"key"`
	Old    bool      `json:"old"`
	New    bool      `json:"new"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

// Settings is the persisted key-value store shared by all contexts.
type Settings interface {
	GetBool(key string, def bool) (bool, error)
	SetBool(key string, value bool) error
}

// Transport carries a change to contexts that do not share this process's
// memory.
type Transport interface {
	Name() string
	Publish(ctx context.Context, c Change) error
}

// Receiver accepts changes published by other contexts.
type Receiver interface {
	Receive(c Change)
}

// Config configures a Relay.
type Config struct {
	// ID identifies this context. A random one is generated when empty.
	ID       string
	Settings Settings
	Clock    clock.Clock
	Logger   zerolog.Logger
}

// Relay is one context's view of the shared flag.
type Relay struct {
	id       string
	settings Settings
	clock    clock.Clock
	logger   zerolog.Logger

	cached atomic.Bool
	// wmu orders store writes against Sync so a local write is never
	// replayed as a change from elsewhere.
	wmu sync.Mutex

	mu         sync.RWMutex
	listeners  map[int]func(Change)
	nextID     int
	transports []Transport

	failures metric.Int64Counter
}

// New creates a relay and reads the stored flag once.
func New(cfg Config) (*Relay, error) {
	if cfg.Settings == nil {
		return nil, errors.New("relay settings store is required")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	r := &Relay{
		id:        cfg.ID,
		settings:  cfg.Settings,
		clock:     cfg.Clock,
		logger:    cfg.Logger.With().Str("context", cfg.ID).Logger(),
		listeners: make(map[int]func(Change)),
	}

	var err error
	r.failures, err = meter().Int64Counter(
		"mudra.relay.publish_failures",
		metric.WithDescription("Change deliveries that a transport failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating publish failures counter: %w", err)
	}

	if _, err := r.Load(); err != nil {
		r.cached.Store(DefaultHybridMode)
		r.logger.Warn().Err(err).Msg("failed to read hybrid mode, using default")
	}

	return r, nil
}

// ID returns the context identifier stamped on outgoing changes.
func (r *Relay) ID() string { return r.id }

// HybridMode returns the last value this context has observed.
func (r *Relay) HybridMode() bool { return r.cached.Load() }

// Load reads the flag from the store and refreshes the cached value.
func (r *Relay) Load() (bool, error) {
	v, err := r.settings.GetBool(store.KeyHybridMode, DefaultHybridMode)
	if err != nil {
		return r.cached.Load(), fmt.Errorf("read hybrid mode: %w", err)
	}
	r.cached.Store(v)
	return v, nil
}

// AddTransport registers an outbound channel.
func (r *Relay) AddTransport(t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports = append(r.transports, t)
}

// Subscribe registers fn for every change observed by this context, local
// or remote. The returned func unsubscribes.
func (r *Relay) Subscribe(fn func(Change)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// SetHybridMode writes v and relays it. It returns the value stored before
// the write. Only a failed store write is returned as an error; transport
// failures are logged.
func (r *Relay) SetHybridMode(ctx context.Context, v bool) (bool, error) {
	old, err := r.settings.GetBool(store.KeyHybridMode, DefaultHybridMode)
	if err != nil {
		old = r.cached.Load()
		r.logger.Warn().Err(err).Msg("failed to read previous hybrid mode")
	}

	r.wmu.Lock()
	if err := r.settings.SetBool(store.KeyHybridMode, v); err != nil {
		r.wmu.Unlock()
		return old, fmt.Errorf("persist hybrid mode: %w", err)
	}
	r.cached.Store(v)
	r.wmu.Unlock()

	c := Change{
		Key:    store.KeyHybridMode,
		Old:    old,
		New:    v,
		Origin: r.id,
		At:     r.clock.Now(),
	}
	r.logger.Info().Bool("old", old).Bool("new", v).Msg("hybrid mode set")

	r.notify(c)
	r.publish(ctx, c)
	return old, nil
}

// Receive applies a change published by another context. Changes from this
// context and unknown keys are ignored.
func (r *Relay) Receive(c Change) {
	if c.Origin == r.id || c.Key != store.KeyHybridMode {
		return
	}
	r.cached.Store(c.New)
	r.logger.Debug().Str("origin", c.Origin).Bool("new", c.New).Msg("hybrid mode changed elsewhere")
	r.notify(c)
}

// Sync re-reads the stored flag and, when it differs from the cached value,
// applies it as a change from origin. It reports whether a change was applied.
func (r *Relay) Sync(origin string) (bool, error) {
	r.wmu.Lock()
	v, err := r.settings.GetBool(store.KeyHybridMode, DefaultHybridMode)
	if err != nil {
		r.wmu.Unlock()
		return false, fmt.Errorf("read hybrid mode: %w", err)
	}
	old := r.cached.Load()
	if v == old {
		r.wmu.Unlock()
		return false, nil
	}
	r.cached.Store(v)
	r.wmu.Unlock()

	c := Change{
		Key:    store.KeyHybridMode,
		Old:    old,
		New:    v,
		Origin: origin,
		At:     r.clock.Now(),
	}
	r.logger.Debug().Str("origin", origin).Bool("new", v).Msg("hybrid mode changed in store")
	r.notify(c)
	return true, nil
}

func (r *Relay) notify(c Change) {
	r.mu.RLock()
	fns := make([]func(Change), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (r *Relay) publish(ctx context.Context, c Change) {
	r.mu.RLock()
	transports := append([]Transport(nil), r.transports...)
	r.mu.RUnlock()

	for _, t := range transports {
		if err := t.Publish(ctx, c); err != nil {
			r.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", t.Name())))
			r.logger.Warn().Err(err).Str("transport", t.Name()).Msg("relay publish failed")
		}
	}
}
