package gesture

import (
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/landmark"
)

// ErrNoSamples is returned when training is attempted without recordings.
var ErrNoSamples = errors.New("no samples provided")

// Trainer turns recorded windows into template data.
type Trainer struct{}

// NewTrainer creates a new Trainer instance.
func NewTrainer() *Trainer {
	return &Trainer{}
}

// TrainStatic averages the normalized pose of the last frame of each
// recording into a single static template pose.
func (t *Trainer) TrainStatic(recordings [][]landmark.Frame) ([]landmark.Point, error) {
	if len(recordings) == 0 {
		return nil, ErrNoSamples
	}

	var sum [landmark.NumLandmarks]landmark.Point
	for i, rec := range recordings {
		if len(rec) == 0 {
			return nil, fmt.Errorf("recording %d has no frames", i)
		}
		pose := rec[len(rec)-1].Normalize()
		for j, p := range pose.Landmarks {
			sum[j].X += p.X
			sum[j].Y += p.Y
			sum[j].Z += p.Z
		}
	}

	n := float64(len(recordings))
	averaged := make([]landmark.Point, landmark.NumLandmarks)
	for j, p := range sum {
		averaged[j] = landmark.Point{X: p.X / n, Y: p.Y / n, Z: p.Z / n}
	}
	return averaged, nil
}

// TrainDynamic averages the fingertip paths of several recordings. Paths
// are resampled to the length of the first one before averaging.
func (t *Trainer) TrainDynamic(recordings [][]landmark.Frame) ([]PathPoint, error) {
	if len(recordings) == 0 {
		return nil, ErrNoSamples
	}

	paths := make([][]PathPoint, 0, len(recordings))
	for i, rec := range recordings {
		if len(rec) < 2 {
			return nil, fmt.Errorf("recording %d has insufficient path points", i)
		}
		paths = append(paths, PathFromFrames(rec))
	}

	targetLength := len(paths[0])
	resampled := make([][]PathPoint, len(paths))
	for i, p := range paths {
		resampled[i] = resamplePath(p, targetLength)
	}

	n := float64(len(paths))
	averaged := make([]PathPoint, targetLength)
	for i := 0; i < targetLength; i++ {
		var sumX, sumY float64
		for _, p := range resampled {
			sumX += p[i].X
			sumY += p[i].Y
		}
		averaged[i] = PathPoint{
			X:         sumX / n,
			Y:         sumY / n,
			Timestamp: resampled[0][i].Timestamp,
		}
	}

	return averaged, nil
}

// resamplePath resamples a path to exactly targetLength points with
// linear interpolation.
func resamplePath(path []PathPoint, targetLength int) []PathPoint {
	if len(path) == 0 {
		return nil
	}

	if len(path) == 1 || targetLength <= 1 {
		return []PathPoint{path[0]}
	}

	result := make([]PathPoint, targetLength)

	for i := 0; i < targetLength; i++ {
		pos := float64(i) / float64(targetLength-1) * float64(len(path)-1)

		idx := int(pos)
		if idx >= len(path)-1 {
			idx = len(path) - 2
		}
		frac := pos - float64(idx)

		p1 := path[idx]
		p2 := path[idx+1]

		result[i] = PathPoint{
			X:         p1.X + frac*(p2.X-p1.X),
			Y:         p1.Y + frac*(p2.Y-p1.Y),
			Timestamp: p1.Timestamp + int64(frac*float64(p2.Timestamp-p1.Timestamp)),
		}
	}

	return result
}
