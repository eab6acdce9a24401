// Package landmark defines hand landmark frames and the tracking stream wire format.
package landmark

import (
	"math"
	"time"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels reported by the tracking service.
const (
	Left  = "Left"
	Right = "Right"
)

// Point is a normalized landmark position. Z is optional on the wire.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Frame is one timestamped capture of a single detected hand.
// Frames are values and are never mutated after parsing.
type Frame struct {
	Timestamp  int64               `json:"timestamp"` // Unix milliseconds
	Landmarks  [NumLandmarks]Point `json:"landmarks"`
	Handedness string              `json:"handedness"`
	Confidence float64             `json:"confidence"`
}

// Time returns the capture time of the frame.
func (f Frame) Time() time.Time {
	return time.UnixMilli(f.Timestamp)
}

// Batch is the parsed form of one stream message. An empty batch means no
// hand was detected in that tick.
type Batch struct {
	Frames []Frame
}

// HandPresent reports whether the batch carries at least one hand.
func (b Batch) HandPresent() bool {
	return len(b.Frames) > 0
}

// Primary returns the first detected hand.
func (b Batch) Primary() (Frame, bool) {
	if len(b.Frames) == 0 {
		return Frame{}, false
	}
	return b.Frames[0], true
}

// distance calculates the Euclidean distance between two points.
func distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Normalize returns a copy of the frame translated so the wrist is at the
// origin and scaled so the wrist to middle MCP distance is 1.0.
func (f Frame) Normalize() Frame {
	normalized := f

	wrist := f.Landmarks[Wrist]
	for i := 0; i < NumLandmarks; i++ {
		normalized.Landmarks[i] = Point{
			X: f.Landmarks[i].X - wrist.X,
			Y: f.Landmarks[i].Y - wrist.Y,
			Z: f.Landmarks[i].Z - wrist.Z,
		}
	}

	scale := distance(Point{}, normalized.Landmarks[MiddleMCP])
	if scale < 1e-10 {
		return normalized
	}

	for i := 0; i < NumLandmarks; i++ {
		normalized.Landmarks[i].X /= scale
		normalized.Landmarks[i].Y /= scale
		normalized.Landmarks[i].Z /= scale
	}

	return normalized
}
