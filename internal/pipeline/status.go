package pipeline

import (
	"time"

	"github.com/ayusman/mudra/internal/backend"
)

// StatusKind classifies a user-visible pipeline status.
type StatusKind string

const (
	StatusConnected     StatusKind = "connected"
	StatusDisconnected  StatusKind = "disconnected"
	StatusReady         StatusKind = "ready"
	StatusExecuting     StatusKind = "executing"
	StatusSwitchContext StatusKind = "switch_context"
	StatusExecuted      StatusKind = "executed"
	StatusAppNotFound   StatusKind = "app_not_found"
	StatusExecuteFailed StatusKind = "execute_failed"
	StatusMatchFailed   StatusKind = "match_failed"
)

// Status is one update for the user. Gesture is set for match outcomes.
type Status struct {
	Kind       StatusKind
	Message    string
	Gesture    *backend.GestureRef
	Similarity float64
	At         time.Time
}

// StatusSink receives status updates. Implementations must not block.
type StatusSink interface {
	Status(Status)
}

// StatusFunc adapts a function to StatusSink.
type StatusFunc func(Status)

// Status calls f(s).
func (f StatusFunc) Status(s Status) { f(s) }

type discardStatus struct{}

func (discardStatus) Status(Status) {}
