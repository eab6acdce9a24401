// Package tracking produces synthetic hand-tracking batches so the client
// and the reference backend can run without a camera or a model.
package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ayusman/mudra/internal/landmark"
)

// DefaultFPS is the tracking service frame rate.
const DefaultFPS = 30

// Source yields one batch per tick.
type Source interface {
	Next(ts time.Time) landmark.Batch
}

// Scripted replays a fixed sequence of batches, looping at the end. A nil
// entry in the script is a tick with no hand.
type Scripted struct {
	mu     sync.Mutex
	script [][]landmark.Frame
	pos    int
}

// NewScripted creates a looping scripted source.
func NewScripted(script ...[]landmark.Frame) *Scripted {
	return &Scripted{script: script}
}

// Next implements Source.
func (s *Scripted) Next(ts time.Time) landmark.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.script) == 0 {
		return landmark.Batch{}
	}
	hands := s.script[s.pos]
	s.pos = (s.pos + 1) % len(s.script)

	return stamp(hands, ts)
}

// Simulator sweeps a pose horizontally across the view, then drops the
// hand for a few ticks, and repeats.
type Simulator struct {
	Pose    landmark.Frame
	Present int     // ticks with a hand per cycle
	Gap     int     // ticks without a hand per cycle
	Sweep   float64 // total horizontal travel while present

	mu   sync.Mutex
	tick int
}

// NewSimulator returns a right-to-left swipe with an open palm: two and a
// half seconds of hand followed by half a second of nothing at 30 FPS.
func NewSimulator() *Simulator {
	return &Simulator{
		Pose:    OpenPalm(),
		Present: 75,
		Gap:     15,
		Sweep:   -0.3,
	}
}

// Next implements Source.
func (s *Simulator) Next(ts time.Time) landmark.Batch {
	s.mu.Lock()
	i := s.tick
	s.tick++
	s.mu.Unlock()

	cycle := s.Present + s.Gap
	if cycle <= 0 {
		return landmark.Batch{}
	}
	i %= cycle
	if i >= s.Present {
		return landmark.Batch{}
	}

	progress := 0.0
	if s.Present > 1 {
		progress = float64(i) / float64(s.Present-1)
	}
	f := Translate(s.Pose, s.Sweep*(progress-0.5), 0)
	return stamp([]landmark.Frame{f}, ts)
}

func stamp(hands []landmark.Frame, ts time.Time) landmark.Batch {
	if len(hands) == 0 {
		return landmark.Batch{}
	}
	frames := make([]landmark.Frame, len(hands))
	for i, f := range hands {
		f.Timestamp = ts.UnixMilli()
		frames[i] = f
	}
	return landmark.Batch{Frames: frames}
}

// Play calls emit with one batch per tick until ctx is done.
func Play(ctx context.Context, src Source, fps int, clk clock.Clock, emit func(landmark.Batch)) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if clk == nil {
		clk = clock.New()
	}

	ticker := clk.Ticker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			emit(src.Next(now))
		}
	}
}
