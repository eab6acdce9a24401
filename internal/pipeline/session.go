// Package pipeline turns a stream of landmark batches into gated match
// requests: frames accumulate in a bounded window, a full window triggers at
// most one in-flight match, and a quiet period follows every attempt.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/landmark"
)

// Config configures a Session.
type Config struct {
	WindowSize  int
	QuietPeriod time.Duration
	Clock       clock.Clock
	Logger      zerolog.Logger
	Status      StatusSink
}

// Session owns the window and cooldown of one consuming context. It
// implements stream.Handler and stream.StateListener.
type Session struct {
	id      string
	state   *State
	matcher *MatchClient
	clock   clock.Clock
	logger  zerolog.Logger
	status  StatusSink

	mu       sync.Mutex
	window   *Window
	cooldown *Cooldown

	inflight sync.WaitGroup
}

// NewSession creates a session. State and matcher may be shared with the
// caller; the window and cooldown are private to the session.
func NewSession(cfg Config, state *State, matcher *MatchClient) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Status == nil {
		cfg.Status = discardStatus{}
	}

	id := uuid.NewString()
	return &Session{
		id:       id,
		state:    state,
		matcher:  matcher,
		clock:    cfg.Clock,
		logger:   cfg.Logger.With().Str("session", id).Logger(),
		status:   cfg.Status,
		window:   NewWindow(cfg.WindowSize),
		cooldown: NewCooldown(cfg.QuietPeriod, cfg.Clock),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the session's shared state.
func (s *Session) State() *State { return s.state }

// HandleBatch reacts to one stream message. A batch without a hand clears
// the window; otherwise the primary hand's frame is buffered and a full
// window is submitted when the gate allows it.
func (s *Session) HandleBatch(b landmark.Batch) {
	frame, ok := b.Primary()
	if !ok {
		s.state.handPresent.Store(false)
		s.mu.Lock()
		s.window.Clear()
		s.mu.Unlock()
		return
	}
	s.state.handPresent.Store(true)

	s.mu.Lock()
	if !s.window.Push(frame) || !s.state.HybridMode() || !s.cooldown.TryBegin() {
		s.mu.Unlock()
		return
	}
	frames := s.window.Drain()
	s.mu.Unlock()

	s.inflight.Add(1)
	go s.runMatch(frames)
}

func (s *Session) runMatch(frames []landmark.Frame) {
	defer s.inflight.Done()
	defer s.cooldown.Finish()

	ctx, cancel := context.WithTimeout(context.Background(), matchTimeout)
	defer cancel()

	s.matcher.Match(ctx, frames)
}

// ConnectionChanged records stream connectivity and refreshes the template
// catalog on every (re)connect.
func (s *Session) ConnectionChanged(connected bool) {
	s.state.connected.Store(connected)
	if !connected {
		s.state.handPresent.Store(false)
		s.mu.Lock()
		s.window.Clear()
		s.mu.Unlock()
		s.emit(Status{Kind: StatusDisconnected, Message: "Disconnected from tracking service"})
		return
	}

	s.emit(Status{Kind: StatusConnected, Message: "Connected to tracking service"})
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), matchTimeout)
		defer cancel()
		n, err := s.matcher.RefreshTemplates(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to load gesture templates")
			return
		}
		s.logger.Debug().Int("templates", n).Msg("gesture templates loaded")
	}()
}

// WindowLen returns the number of buffered frames.
func (s *Session) WindowLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Len()
}

// CooldownState returns the match gate state.
func (s *Session) CooldownState() CooldownState {
	return s.cooldown.State()
}

// Wait blocks until in-flight backend calls have returned.
func (s *Session) Wait() {
	s.inflight.Wait()
}

// Close waits for in-flight calls and cancels the quiet timer.
func (s *Session) Close() {
	s.inflight.Wait()
	s.cooldown.Stop()
}

func (s *Session) emit(st Status) {
	st.At = s.clock.Now()
	s.status.Status(st)
}
