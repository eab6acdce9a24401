package landmark

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformed is returned when a stream message cannot be turned into a batch.
var ErrMalformed = errors.New("malformed stream message")

// Message is the tracking service wire format, one per frame tick.
type Message struct {
	HandCount int    `json:"hand_count"`
	Hands     []Hand `json:"hands"`
}

// Hand is a single detected hand as sent by the tracking service.
type Hand struct {
	Landmarks  []Point `json:"landmarks"`
	Handedness string  `json:"handedness"`
	Confidence float64 `json:"confidence"`
}

// Validate checks that the hand carries a full skeleton and sane labels.
func (h Hand) Validate() error {
	if len(h.Landmarks) != NumLandmarks {
		return fmt.Errorf("expected %d landmarks, got %d", NumLandmarks, len(h.Landmarks))
	}
	if h.Handedness != Left && h.Handedness != Right {
		return fmt.Errorf("handedness must be 'Left' or 'Right', got %q", h.Handedness)
	}
	if h.Confidence < 0 || h.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1, got %f", h.Confidence)
	}
	return nil
}

// Frame converts the hand into an immutable Frame stamped with ts.
func (h Hand) Frame(ts time.Time) Frame {
	f := Frame{
		Timestamp:  ts.UnixMilli(),
		Handedness: h.Handedness,
		Confidence: h.Confidence,
	}
	copy(f.Landmarks[:], h.Landmarks)
	return f
}

// NewMessage builds a wire message from frames. Used by the tracking side.
func NewMessage(frames []Frame) Message {
	msg := Message{
		HandCount: len(frames),
		Hands:     make([]Hand, 0, len(frames)),
	}
	for _, f := range frames {
		points := make([]Point, NumLandmarks)
		copy(points, f.Landmarks[:])
		msg.Hands = append(msg.Hands, Hand{
			Landmarks:  points,
			Handedness: f.Handedness,
			Confidence: f.Confidence,
		})
	}
	return msg
}

// Parse decodes a raw stream message received at ts into a Batch.
// A message reporting zero hands yields an empty batch. Only the primary
// hand must be valid; a bad secondary hand is dropped so the primary one
// still reaches the window.
func Parse(data []byte, ts time.Time) (Batch, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if msg.HandCount <= 0 {
		return Batch{}, nil
	}
	if len(msg.Hands) == 0 {
		return Batch{}, fmt.Errorf("%w: hand_count=%d but no hands", ErrMalformed, msg.HandCount)
	}

	if err := msg.Hands[0].Validate(); err != nil {
		return Batch{}, fmt.Errorf("%w: hand 0: %v", ErrMalformed, err)
	}
	frames := make([]Frame, 0, len(msg.Hands))
	frames = append(frames, msg.Hands[0].Frame(ts))
	for _, h := range msg.Hands[1:] {
		if h.Validate() != nil {
			continue
		}
		frames = append(frames, h.Frame(ts))
	}

	return Batch{Frames: frames}, nil
}
