package tracking

import "github.com/ayusman/mudra/internal/landmark"

// ThumbsUp returns a right hand with the thumb extended upward and the
// other fingers curled.
func ThumbsUp() landmark.Frame {
	f := landmark.Frame{Handedness: landmark.Right, Confidence: 0.95}

	f.Landmarks[landmark.Wrist] = landmark.Point{X: 0.5, Y: 0.8}

	// Thumb up (Y decreases going up)
	f.Landmarks[landmark.ThumbCMC] = landmark.Point{X: 0.55, Y: 0.75}
	f.Landmarks[landmark.ThumbMCP] = landmark.Point{X: 0.58, Y: 0.65}
	f.Landmarks[landmark.ThumbIP] = landmark.Point{X: 0.58, Y: 0.50}
	f.Landmarks[landmark.ThumbTip] = landmark.Point{X: 0.58, Y: 0.35}

	// Fingers curled toward the palm
	f.Landmarks[landmark.IndexMCP] = landmark.Point{X: 0.55, Y: 0.70, Z: -0.02}
	f.Landmarks[landmark.IndexPIP] = landmark.Point{X: 0.55, Y: 0.68, Z: -0.05}
	f.Landmarks[landmark.IndexDIP] = landmark.Point{X: 0.52, Y: 0.70, Z: -0.04}
	f.Landmarks[landmark.IndexTip] = landmark.Point{X: 0.50, Y: 0.72, Z: -0.02}

	f.Landmarks[landmark.MiddleMCP] = landmark.Point{X: 0.50, Y: 0.68, Z: -0.02}
	f.Landmarks[landmark.MiddlePIP] = landmark.Point{X: 0.50, Y: 0.66, Z: -0.05}
	f.Landmarks[landmark.MiddleDIP] = landmark.Point{X: 0.47, Y: 0.68, Z: -0.04}
	f.Landmarks[landmark.MiddleTip] = landmark.Point{X: 0.45, Y: 0.70, Z: -0.02}

	f.Landmarks[landmark.RingMCP] = landmark.Point{X: 0.45, Y: 0.70, Z: -0.02}
	f.Landmarks[landmark.RingPIP] = landmark.Point{X: 0.45, Y: 0.68, Z: -0.05}
	f.Landmarks[landmark.RingDIP] = landmark.Point{X: 0.42, Y: 0.70, Z: -0.04}
	f.Landmarks[landmark.RingTip] = landmark.Point{X: 0.40, Y: 0.72, Z: -0.02}

	f.Landmarks[landmark.PinkyMCP] = landmark.Point{X: 0.40, Y: 0.72, Z: -0.02}
	f.Landmarks[landmark.PinkyPIP] = landmark.Point{X: 0.40, Y: 0.70, Z: -0.05}
	f.Landmarks[landmark.PinkyDIP] = landmark.Point{X: 0.37, Y: 0.72, Z: -0.04}
	f.Landmarks[landmark.PinkyTip] = landmark.Point{X: 0.35, Y: 0.74, Z: -0.02}

	return f
}

// OpenPalm returns a right hand with every finger extended.
func OpenPalm() landmark.Frame {
	f := landmark.Frame{Handedness: landmark.Right, Confidence: 0.95}

	f.Landmarks[landmark.Wrist] = landmark.Point{X: 0.5, Y: 0.8}

	f.Landmarks[landmark.ThumbCMC] = landmark.Point{X: 0.55, Y: 0.75, Z: 0.02}
	f.Landmarks[landmark.ThumbMCP] = landmark.Point{X: 0.62, Y: 0.70, Z: 0.03}
	f.Landmarks[landmark.ThumbIP] = landmark.Point{X: 0.68, Y: 0.65, Z: 0.03}
	f.Landmarks[landmark.ThumbTip] = landmark.Point{X: 0.73, Y: 0.60, Z: 0.03}

	f.Landmarks[landmark.IndexMCP] = landmark.Point{X: 0.55, Y: 0.68}
	f.Landmarks[landmark.IndexPIP] = landmark.Point{X: 0.57, Y: 0.55}
	f.Landmarks[landmark.IndexDIP] = landmark.Point{X: 0.58, Y: 0.45}
	f.Landmarks[landmark.IndexTip] = landmark.Point{X: 0.58, Y: 0.35}

	f.Landmarks[landmark.MiddleMCP] = landmark.Point{X: 0.50, Y: 0.66}
	f.Landmarks[landmark.MiddlePIP] = landmark.Point{X: 0.50, Y: 0.52}
	f.Landmarks[landmark.MiddleDIP] = landmark.Point{X: 0.50, Y: 0.40}
	f.Landmarks[landmark.MiddleTip] = landmark.Point{X: 0.50, Y: 0.28}

	f.Landmarks[landmark.RingMCP] = landmark.Point{X: 0.45, Y: 0.68}
	f.Landmarks[landmark.RingPIP] = landmark.Point{X: 0.43, Y: 0.55}
	f.Landmarks[landmark.RingDIP] = landmark.Point{X: 0.42, Y: 0.45}
	f.Landmarks[landmark.RingTip] = landmark.Point{X: 0.42, Y: 0.35}

	f.Landmarks[landmark.PinkyMCP] = landmark.Point{X: 0.40, Y: 0.70}
	f.Landmarks[landmark.PinkyPIP] = landmark.Point{X: 0.37, Y: 0.60}
	f.Landmarks[landmark.PinkyDIP] = landmark.Point{X: 0.35, Y: 0.50}
	f.Landmarks[landmark.PinkyTip] = landmark.Point{X: 0.34, Y: 0.42}

	return f
}

// Translate returns f shifted by (dx, dy) in normalized coordinates.
func Translate(f landmark.Frame, dx, dy float64) landmark.Frame {
	for i := range f.Landmarks {
		f.Landmarks[i].X += dx
		f.Landmarks[i].Y += dy
	}
	return f
}
