package pipeline

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultQuietPeriod is the minimum gap between the end of one match
// attempt and the start of the next.
const DefaultQuietPeriod = time.Second

// CooldownState is the match gate state.
type CooldownState int

const (
	// Idle accepts a new match attempt.
	Idle CooldownState = iota
	// Matching has a request in flight.
	Matching
	// Quiet waits out the post-match delay.
	Quiet
)

func (s CooldownState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Matching:
		return "matching"
	case Quiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// Cooldown allows at most one match attempt in flight and enforces a quiet
// period after each one.
type Cooldown struct {
	mu    sync.Mutex
	state CooldownState
	quiet time.Duration
	clock clock.Clock
	timer *clock.Timer
}

// NewCooldown creates an idle cooldown.
func NewCooldown(quiet time.Duration, clk clock.Clock) *Cooldown {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Cooldown{quiet: quiet, clock: clk}
}

// TryBegin moves Idle to Matching. It returns false in any other state.
func (c *Cooldown) TryBegin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return false
	}
	c.state = Matching
	return true
}

// Finish moves Matching to Quiet and arms the timer back to Idle. It is a
// no-op in any other state.
func (c *Cooldown) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Matching {
		return
	}
	c.state = Quiet
	c.timer = c.clock.AfterFunc(c.quiet, c.toIdle)
}

func (c *Cooldown) toIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Quiet {
		c.state = Idle
	}
	c.timer = nil
}

// State returns the current state.
func (c *Cooldown) State() CooldownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stop cancels a pending quiet timer.
func (c *Cooldown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
