// Package render maps landmark frames onto a pixel grid as joints and bones.
package render

import (
	"math"

	"github.com/ayusman/mudra/internal/landmark"
)

// Bone is a pair of joint indices drawn as one line.
type Bone [2]int

// Bones are the 21 hand connections in MediaPipe order: thumb, index,
// middle, ring and pinky chains, then the palm.
var Bones = []Bone{
	{landmark.Wrist, landmark.ThumbCMC}, {landmark.ThumbCMC, landmark.ThumbMCP},
	{landmark.ThumbMCP, landmark.ThumbIP}, {landmark.ThumbIP, landmark.ThumbTip},
	{landmark.Wrist, landmark.IndexMCP}, {landmark.IndexMCP, landmark.IndexPIP},
	{landmark.IndexPIP, landmark.IndexDIP}, {landmark.IndexDIP, landmark.IndexTip},
	{landmark.MiddleMCP, landmark.MiddlePIP}, {landmark.MiddlePIP, landmark.MiddleDIP},
	{landmark.MiddleDIP, landmark.MiddleTip},
	{landmark.RingMCP, landmark.RingPIP}, {landmark.RingPIP, landmark.RingDIP},
	{landmark.RingDIP, landmark.RingTip},
	{landmark.Wrist, landmark.PinkyMCP}, {landmark.PinkyMCP, landmark.PinkyPIP},
	{landmark.PinkyPIP, landmark.PinkyDIP}, {landmark.PinkyDIP, landmark.PinkyTip},
	{landmark.IndexMCP, landmark.MiddleMCP}, {landmark.MiddleMCP, landmark.RingMCP},
	{landmark.RingMCP, landmark.PinkyMCP},
}

// Pixel is a position on the output surface.
type Pixel struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Segment is one bone mapped to pixels.
type Segment struct {
	Bone Bone  `json:"bone"`
	From Pixel `json:"from"`
	To   Pixel `json:"to"`
}

// Skeleton is the drawable form of one hand.
type Skeleton struct {
	Handedness string                       `json:"handedness"`
	Joints     [landmark.NumLandmarks]Pixel `json:"joints"`
	Segments   []Segment                    `json:"segments"`
}

// Options describes the output surface. Mirror flips horizontally, which
// is what a user facing the camera expects to see.
type Options struct {
	Width  int
	Height int
	Mirror bool
}

// Frame maps one frame to a skeleton.
func Frame(f landmark.Frame, opt Options) Skeleton {
	s := Skeleton{
		Handedness: f.Handedness,
		Segments:   make([]Segment, 0, len(Bones)),
	}
	for i, p := range f.Landmarks {
		s.Joints[i] = toPixel(p, opt)
	}
	for _, b := range Bones {
		s.Segments = append(s.Segments, Segment{
			Bone: b,
			From: s.Joints[b[0]],
			To:   s.Joints[b[1]],
		})
	}
	return s
}

// Batch maps every hand in a batch. An empty batch yields nothing to draw.
func Batch(b landmark.Batch, opt Options) []Skeleton {
	out := make([]Skeleton, 0, len(b.Frames))
	for _, f := range b.Frames {
		out = append(out, Frame(f, opt))
	}
	return out
}

func toPixel(p landmark.Point, opt Options) Pixel {
	x := p.X
	if opt.Mirror {
		x = 1 - x
	}
	return Pixel{
		X: scale(x, opt.Width),
		Y: scale(p.Y, opt.Height),
	}
}

// scale maps a normalized coordinate to [0, size-1].
func scale(v float64, size int) int {
	if size <= 0 {
		return 0
	}
	px := int(math.Round(v * float64(size-1)))
	if px < 0 {
		return 0
	}
	if px > size-1 {
		return size - 1
	}
	return px
}
