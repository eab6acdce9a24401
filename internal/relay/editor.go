package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// exitTimeout bounds the restore calls made when an editing session ends.
const exitTimeout = 10 * time.Second

// RecordingStateSetter toggles backend-side match suppression.
type RecordingStateSetter interface {
	SetRecordingState(ctx context.Context, recording bool) error
}

// EditorState is the editor session state.
type EditorState int

const (
	EditorIdle EditorState = iota
	Editing
)

func (s EditorState) String() string {
	if s == Editing {
		return "editing"
	}
	return "idle"
}

// Editor suspends gesture control while a gesture is being authored and
// restores it afterwards. Every step is attempted even when an earlier one
// fails; errors are joined and returned for display, never used to abort.
type Editor struct {
	relay   *Relay
	backend RecordingStateSetter
	logger  zerolog.Logger

	mu    sync.Mutex
	state EditorState
	saved *bool
}

// NewEditor creates an idle editor session.
func NewEditor(r *Relay, b RecordingStateSetter, logger zerolog.Logger) *Editor {
	return &Editor{relay: r, backend: b, logger: logger}
}

// State returns the current session state.
func (e *Editor) State() EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Enter captures hybrid mode, turns it off and marks the backend as
// recording. The session is Editing afterwards regardless of errors.
func (e *Editor) Enter(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Editing {
		return nil
	}

	var errs []error

	if v, err := e.relay.Load(); err != nil {
		errs = append(errs, fmt.Errorf("capture hybrid mode: %w", err))
		e.saved = nil
	} else {
		e.saved = &v
	}

	if _, err := e.relay.SetHybridMode(ctx, false); err != nil {
		errs = append(errs, fmt.Errorf("disable hybrid mode: %w", err))
	}

	if err := e.backend.SetRecordingState(ctx, true); err != nil {
		errs = append(errs, fmt.Errorf("set recording state: %w", err))
	}

	e.state = Editing

	err := errors.Join(errs...)
	if err != nil {
		e.logger.Warn().Err(err).Msg("editor session entered in degraded mode")
	} else {
		e.logger.Info().Msg("editor session entered")
	}
	return err
}

// Exit restores the captured hybrid mode (true if none was captured) and
// clears the backend recording state. It is a no-op when not editing.
func (e *Editor) Exit(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Editing {
		return nil
	}

	restore := DefaultHybridMode
	if e.saved != nil {
		restore = *e.saved
	}

	var errs []error

	if _, err := e.relay.SetHybridMode(ctx, restore); err != nil {
		errs = append(errs, fmt.Errorf("restore hybrid mode: %w", err))
	}

	if err := e.backend.SetRecordingState(ctx, false); err != nil {
		errs = append(errs, fmt.Errorf("clear recording state: %w", err))
	}

	e.state = EditorIdle
	e.saved = nil

	err := errors.Join(errs...)
	if err != nil {
		e.logger.Warn().Err(err).Bool("hybrid_mode", restore).Msg("editor session exit incomplete")
	} else {
		e.logger.Info().Bool("hybrid_mode", restore).Msg("editor session exited")
	}
	return err
}

// Run enters an editing session, calls fn and always exits, whether fn
// saves, cancels, fails or panics. Exit runs even when ctx is cancelled.
func (e *Editor) Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	enterErr := e.Enter(ctx)

	defer func() {
		exitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exitTimeout)
		defer cancel()
		if exitErr := e.Exit(exitCtx); exitErr != nil {
			err = errors.Join(err, exitErr)
		}
	}()

	if fnErr := fn(ctx); fnErr != nil {
		return errors.Join(fnErr, enterErr)
	}
	return enterErr
}
