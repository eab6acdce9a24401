package pipeline

import "github.com/ayusman/mudra/internal/landmark"

// DefaultWindowSize is about two seconds of frames at 30 FPS.
const DefaultWindowSize = 60

// Window is a bounded FIFO of frames. It is not safe for concurrent use;
// the owning Session serializes access.
type Window struct {
	frames   []landmark.Frame
	capacity int
}

// NewWindow creates an empty window holding at most capacity frames.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{
		frames:   make([]landmark.Frame, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a frame, evicting the oldest once capacity is exceeded,
// and reports whether the window is full afterwards.
func (w *Window) Push(f landmark.Frame) bool {
	if len(w.frames) >= w.capacity {
		copy(w.frames, w.frames[1:])
		w.frames = w.frames[:w.capacity-1]
	}
	w.frames = append(w.frames, f)
	return w.Full()
}

// Clear empties the window.
func (w *Window) Clear() {
	w.frames = w.frames[:0]
}

// Drain returns the buffered frames in arrival order and empties the window.
func (w *Window) Drain() []landmark.Frame {
	out := make([]landmark.Frame, len(w.frames))
	copy(out, w.frames)
	w.frames = w.frames[:0]
	return out
}

// Len returns the number of buffered frames.
func (w *Window) Len() int {
	return len(w.frames)
}

// Full reports whether the window holds capacity frames.
func (w *Window) Full() bool {
	return len(w.frames) == w.capacity
}

// Capacity returns the maximum number of frames.
func (w *Window) Capacity() int {
	return w.capacity
}
