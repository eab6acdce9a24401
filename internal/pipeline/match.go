package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ayusman/mudra/internal/backend"
	"github.com/ayusman/mudra/internal/landmark"
)

// DefaultMinFrames is the smallest window worth sending to the backend.
const DefaultMinFrames = 30

// matchTimeout bounds one match plus execute round trip.
const matchTimeout = 15 * time.Second

// Backend is the subset of the backend API the pipeline needs.
type Backend interface {
	ListGestures(ctx context.Context) ([]backend.GestureInfo, error)
	Match(ctx context.Context, frames []landmark.Frame) (backend.MatchResult, error)
	Execute(ctx context.Context, gestureID string) (backend.ExecuteResult, error)
}

// MatchConfig configures a MatchClient.
type MatchConfig struct {
	MinFrames int
	Clock     clock.Clock
	Logger    zerolog.Logger
	Status    StatusSink
}

// MatchClient asks the backend whether a window is a gesture and runs the
// bound action when the gesture belongs to the active context.
type MatchClient struct {
	backend   Backend
	state     *State
	minFrames int
	clock     clock.Clock
	logger    zerolog.Logger
	status    StatusSink

	// templates is -1 until the catalog has been fetched.
	templates atomic.Int64

	requests   metric.Int64Counter
	executions metric.Int64Counter
}

// NewMatchClient creates a match client reading the active context from state.
func NewMatchClient(b Backend, state *State, cfg MatchConfig) (*MatchClient, error) {
	if cfg.MinFrames <= 0 {
		cfg.MinFrames = DefaultMinFrames
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Status == nil {
		cfg.Status = discardStatus{}
	}

	m := &MatchClient{
		backend:   b,
		state:     state,
		minFrames: cfg.MinFrames,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		status:    cfg.Status,
	}
	m.templates.Store(-1)

	var err error
	m.requests, err = meter().Int64Counter(
		"mudra.pipeline.match_requests",
		metric.WithDescription("Match requests sent to the backend"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating match requests counter: %w", err)
	}
	m.executions, err = meter().Int64Counter(
		"mudra.pipeline.executions",
		metric.WithDescription("Execute requests by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating executions counter: %w", err)
	}

	return m, nil
}

// RefreshTemplates fetches the template catalog and caches its size.
func (m *MatchClient) RefreshTemplates(ctx context.Context) (int, error) {
	gestures, err := m.backend.ListGestures(ctx)
	if err != nil {
		return 0, fmt.Errorf("refresh templates: %w", err)
	}
	m.templates.Store(int64(len(gestures)))
	return len(gestures), nil
}

// SetTemplateCount overrides the cached catalog size.
func (m *MatchClient) SetTemplateCount(n int) {
	m.templates.Store(int64(n))
}

// hasTemplates reports whether the catalog may hold templates. A cached
// empty catalog is re-fetched, since gestures can be authored while the
// stream stays connected.
func (m *MatchClient) hasTemplates(ctx context.Context) bool {
	if m.templates.Load() != 0 {
		return true
	}
	n, err := m.RefreshTemplates(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to refresh gesture templates")
		return false
	}
	return n > 0
}

// Match submits a window and acts on the verdict. It returns true when the
// backend was contacted. Errors surface as statuses, never as returns.
func (m *MatchClient) Match(ctx context.Context, frames []landmark.Frame) bool {
	if len(frames) < m.minFrames {
		m.logger.Debug().Int("frames", len(frames)).Int("min", m.minFrames).Msg("window too short, skipping match")
		return false
	}
	if !m.hasTemplates(ctx) {
		m.logger.Debug().Msg("no gesture templates, skipping match")
		return false
	}

	m.requests.Add(ctx, 1)
	result, err := m.backend.Match(ctx, frames)
	if err != nil {
		m.logger.Warn().Err(err).Msg("match request failed")
		m.emit(Status{Kind: StatusMatchFailed, Message: "Match failed: " + err.Error()})
		return true
	}

	if !result.Matched {
		m.emit(Status{Kind: StatusReady, Message: "Ready"})
		return true
	}

	g := result.Gesture
	if g == nil {
		m.logger.Warn().Msg("match response has no gesture")
		m.emit(Status{Kind: StatusMatchFailed, Message: "Match failed: response has no gesture"})
		return true
	}
	active := m.state.ActiveContext()
	log := m.logger.With().Str("gesture", g.Name).Str("app_context", g.AppContext).Float64("similarity", result.Similarity).Logger()

	if g.AppContext != active {
		log.Info().Str("active_context", active).Msg("gesture matched in another context")
		m.emit(Status{
			Kind:       StatusSwitchContext,
			Message:    fmt.Sprintf("Matched %s; switch to %s to run it", g.Name, g.AppContext),
			Gesture:    g,
			Similarity: result.Similarity,
		})
		return true
	}

	log.Info().Msg("gesture matched, executing")
	m.emit(Status{
		Kind:       StatusExecuting,
		Message:    fmt.Sprintf("Matched %s, executing", g.Name),
		Gesture:    g,
		Similarity: result.Similarity,
	})
	m.execute(ctx, g, result.Similarity, log)
	return true
}

func (m *MatchClient) execute(ctx context.Context, g *backend.GestureRef, similarity float64, log zerolog.Logger) {
	res, err := m.backend.Execute(ctx, g.ID)

	st := Status{Gesture: g, Similarity: similarity}
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("execute request failed")
		st.Kind = StatusExecuteFailed
		st.Message = "Execute failed: " + err.Error()
	case res.AppNotFound:
		log.Warn().Str("error", res.Error).Msg("target application not running")
		st.Kind = StatusAppNotFound
		st.Message = fmt.Sprintf("%s: target application is not running", g.Name)
	case !res.Success:
		log.Warn().Str("error", res.Error).Msg("action failed")
		st.Kind = StatusExecuteFailed
		st.Message = fmt.Sprintf("%s failed: %s", g.Name, res.Error)
	default:
		st.Kind = StatusExecuted
		st.Message = fmt.Sprintf("Executed %s", g.Name)
		if res.WindowSwitched && res.WindowTitle != "" {
			st.Message += " in " + res.WindowTitle
		}
	}

	m.executions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(st.Kind))))
	m.emit(st)
}

func (m *MatchClient) emit(s Status) {
	s.At = m.clock.Now()
	m.status.Status(s)
}
