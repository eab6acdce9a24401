package pipeline

import (
	"sync/atomic"

	"github.com/ayusman/mudra/internal/store"
)

// State holds the mutable flags of one client session. Callbacks read them
// through the pointer at call time, never from a captured copy.
type State struct {
	// Desired is the stream liveness flag handed to stream.Conn.
	Desired atomic.Bool

	hybrid        atomic.Bool
	handPresent   atomic.Bool
	connected     atomic.Bool
	activeContext atomic.Value // string
}

// NewState creates a session state with hybrid mode on and the given
// active application context.
func NewState(activeContext string) *State {
	s := &State{}
	s.hybrid.Store(true)
	s.SetActiveContext(activeContext)
	return s
}

// HybridMode reports whether gesture control runs alongside the pointer.
func (s *State) HybridMode() bool { return s.hybrid.Load() }

// SetHybridMode updates the local copy of the shared flag.
func (s *State) SetHybridMode(v bool) { s.hybrid.Store(v) }

// ActiveContext returns the application context gestures must match.
func (s *State) ActiveContext() string {
	v, _ := s.activeContext.Load().(string)
	return v
}

// SetActiveContext changes the active application context. An empty value
// selects the global context.
func (s *State) SetActiveContext(ctx string) {
	if ctx == "" {
		ctx = store.DefaultAppContext
	}
	s.activeContext.Store(ctx)
}

// HandPresent reports whether the last batch carried a hand.
func (s *State) HandPresent() bool { return s.handPresent.Load() }

// Connected reports whether the stream is connected.
func (s *State) Connected() bool { return s.connected.Load() }
