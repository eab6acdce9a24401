package pipeline

import (
	"context"
	"sync"

	"github.com/ayusman/mudra/internal/backend"
	"github.com/ayusman/mudra/internal/landmark"
)

// fakeBackend records calls and returns canned responses. When block is
// non-nil, Match waits for it to be closed.
type fakeBackend struct {
	mu           sync.Mutex
	matchCalls   int
	matchSizes   []int
	executeCalls []string
	listCalls    int

	gestures []backend.GestureInfo
	listErr  error
	result   backend.MatchResult
	matchErr error
	exec     backend.ExecuteResult
	execErr  error
	block    chan struct{}
}

func (f *fakeBackend) ListGestures(ctx context.Context) ([]backend.GestureInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.gestures, nil
}

func (f *fakeBackend) setGestures(g []backend.GestureInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gestures = g
}

func (f *fakeBackend) lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeBackend) Match(ctx context.Context, frames []landmark.Frame) (backend.MatchResult, error) {
	f.mu.Lock()
	f.matchCalls++
	f.matchSizes = append(f.matchSizes, len(frames))
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.matchErr
}

func (f *fakeBackend) Execute(ctx context.Context, gestureID string) (backend.ExecuteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executeCalls = append(f.executeCalls, gestureID)
	return f.exec, f.execErr
}

func (f *fakeBackend) matches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matchCalls
}

func (f *fakeBackend) executes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executeCalls...)
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) Status(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) kinds() []StatusKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]StatusKind, 0, len(r.statuses))
	for _, s := range r.statuses {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

func (r *statusRecorder) last() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return Status{}
	}
	return r.statuses[len(r.statuses)-1]
}

func handFrame(ts int64) landmark.Frame {
	f := landmark.Frame{Timestamp: ts, Handedness: landmark.Right, Confidence: 0.9}
	f.Landmarks[landmark.IndexTip] = landmark.Point{X: float64(ts) / 100, Y: 0.5}
	return f
}

func handBatch(ts int64) landmark.Batch {
	return landmark.Batch{Frames: []landmark.Frame{handFrame(ts)}}
}

func frames(n int) []landmark.Frame {
	out := make([]landmark.Frame, n)
	for i := range out {
		out[i] = handFrame(int64(i))
	}
	return out
}
