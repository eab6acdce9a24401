// Package app assembles one client context: the tracking stream feeding
// the matching pipeline, and the relay that keeps hybrid mode in step with
// the other contexts.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/pipeline"
	"github.com/ayusman/mudra/internal/relay"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/stream"
)

// Backend is the gesture backend as seen by a client context.
type Backend interface {
	pipeline.Backend
	relay.RecordingStateSetter
}

// Config holds configuration options for one client context.
type Config struct {
	Store   *store.Store
	Backend Backend

	StreamURL      string
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer

	WindowSize    int
	MinFrames     int
	QuietPeriod   time.Duration
	ActiveContext string

	// OverlayURL enables the overlay push when set.
	OverlayURL string
	// MQTT enables the cross-process transport when Broker is set.
	MQTT relay.MQTTConfig
	// Hub connects contexts living in the same process.
	Hub *relay.Hub
	// WatchStore observes flag writes made by other processes through the
	// shared database, with WatchPoll as the fallback re-read interval.
	WatchStore bool
	WatchPoll  time.Duration

	Clock  clock.Clock
	Logger zerolog.Logger
	Status pipeline.StatusSink
}

// App is one running client context.
type App struct {
	config  Config
	log     zerolog.Logger
	state   *pipeline.State
	relay   *relay.Relay
	matcher *pipeline.MatchClient
	session *pipeline.Session
	conn    *stream.Conn
	editor  *relay.Editor
	mqtt    *relay.MQTTTransport
	watch   *relay.StoreWatcher

	closers []func()
	mu      sync.Mutex
	started bool
}

// New wires a client context. Nothing touches the network until Start,
// except the MQTT transport which connects immediately when configured.
func New(config Config) (*App, error) {
	if config.Store == nil {
		return nil, errors.New("store is required")
	}
	if config.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	a := &App{
		config: config,
		log:    config.Logger.With().Str("component", "app").Logger(),
		state:  pipeline.NewState(config.ActiveContext),
	}

	var err error
	a.relay, err = relay.New(relay.Config{
		Settings: config.Store.Settings(),
		Clock:    config.Clock,
		Logger:   config.Logger,
	})
	if err != nil {
		return nil, err
	}

	// The pipeline gate follows the relay, whichever context wrote it.
	a.state.SetHybridMode(a.relay.HybridMode())
	a.closers = append(a.closers, a.relay.Subscribe(func(c relay.Change) {
		if c.Key == store.KeyHybridMode {
			a.state.SetHybridMode(c.New)
		}
	}))

	if config.Hub != nil {
		a.closers = append(a.closers, config.Hub.Join(a.relay))
	}
	if config.OverlayURL != "" {
		a.relay.AddTransport(relay.NewOverlayPusher(config.OverlayURL))
	}
	if config.MQTT.Broker != "" {
		mqttCfg := config.MQTT
		mqttCfg.Logger = config.Logger
		if mqttCfg.ClientID == "" {
			mqttCfg.ClientID = "mudra-" + a.relay.ID()
		}
		a.mqtt, err = relay.DialMQTT(mqttCfg, a.relay)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect relay broker: %w", err)
		}
		a.relay.AddTransport(a.mqtt)
	}

	if config.WatchStore {
		a.watch, err = relay.WatchStore(relay.WatchConfig{
			Path:   config.Store.Path(),
			Target: a.relay,
			Poll:   config.WatchPoll,
			Clock:  config.Clock,
			Logger: config.Logger,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.editor = relay.NewEditor(a.relay, config.Backend, config.Logger)

	a.matcher, err = pipeline.NewMatchClient(config.Backend, a.state, pipeline.MatchConfig{
		MinFrames: config.MinFrames,
		Clock:     config.Clock,
		Logger:    config.Logger,
		Status:    config.Status,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.session = pipeline.NewSession(pipeline.Config{
		WindowSize:  config.WindowSize,
		QuietPeriod: config.QuietPeriod,
		Clock:       config.Clock,
		Logger:      config.Logger,
		Status:      config.Status,
	}, a.state, a.matcher)

	if config.StreamURL != "" {
		a.conn, err = stream.New(stream.Config{
			URL:            config.StreamURL,
			ReconnectDelay: config.ReconnectDelay,
			Desired:        &a.state.Desired,
			Clock:          config.Clock,
			Dialer:         config.Dialer,
			Logger:         config.Logger,
		}, a.session)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

// Start opens the tracking stream. An unreachable tracking service is not
// an error: the connection keeps retrying in the background.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return nil
	}
	if a.conn == nil {
		return errors.New("no stream url configured")
	}

	a.state.Desired.Store(true)
	if err := a.conn.Open(ctx); err != nil {
		a.log.Warn().Err(err).Str("url", a.config.StreamURL).Msg("tracking service unavailable, retrying")
	}
	a.started = true
	a.log.Info().Str("session", a.session.ID()).Bool("hybrid_mode", a.state.HybridMode()).Msg("client started")
	return nil
}

// Stop closes the stream and waits for in-flight matches.
func (a *App) Stop() {
	a.mu.Lock()
	started := a.started
	a.started = false
	a.mu.Unlock()

	if !started {
		return
	}
	if err := a.conn.Close(); err != nil {
		a.log.Warn().Err(err).Msg("error closing stream")
	}
	a.session.Wait()
	a.log.Info().Msg("client stopped")
}

// Close stops the context and releases its transports.
func (a *App) Close() {
	a.Stop()
	if a.session != nil {
		a.session.Close()
	}
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	if a.watch != nil {
		a.watch.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// SetHybridMode writes the flag through the relay.
func (a *App) SetHybridMode(ctx context.Context, v bool) (bool, error) {
	return a.relay.SetHybridMode(ctx, v)
}

// RefreshTemplates re-reads the backend catalog size.
func (a *App) RefreshTemplates(ctx context.Context) (int, error) {
	return a.matcher.RefreshTemplates(ctx)
}

// Editor returns the gesture editor session controller.
func (a *App) Editor() *relay.Editor { return a.editor }

// Relay returns the hybrid-mode relay of this context.
func (a *App) Relay() *relay.Relay { return a.relay }

// State returns the shared pipeline state.
func (a *App) State() *pipeline.State { return a.state }

// Session returns the matching session.
func (a *App) Session() *pipeline.Session { return a.session }

// Connected reports whether the tracking stream is open.
func (a *App) Connected() bool {
	return a.conn != nil && a.conn.Connected()
}
