package facemetrics

import (
	"fmt"
	"math"
)

// #region calculator

// Calculator turns a landmark set into eye and mouth aspect ratios.
// It holds only the index groups and is safe for concurrent use.
type Calculator struct {
	leftEye  [EyePoints]int
	rightEye [EyePoints]int
	mouth    [MouthPoints]int
}

// NewCalculator creates a calculator over the canonical face-mesh indices.
func NewCalculator() *Calculator {
	return &Calculator{leftEye: LeftEye, rightEye: RightEye, mouth: Mouth}
}

// Compute gathers the eye and mouth groups from set and returns their ratios.
// A missing index fails with ErrInvalidInput; a zero reference distance
// returns zero ratios and ErrDegenerate.
func (c *Calculator) Compute(set LandmarkSet) (Ratios, error) {
	left, err := gather(set, c.leftEye[:])
	if err != nil {
		return Ratios{}, fmt.Errorf("left eye: %w", err)
	}
	right, err := gather(set, c.rightEye[:])
	if err != nil {
		return Ratios{}, fmt.Errorf("right eye: %w", err)
	}
	mouth, err := gather(set, c.mouth[:])
	if err != nil {
		return Ratios{}, fmt.Errorf("mouth: %w", err)
	}

	leftEAR, err := EyeAspectRatio(left)
	if err != nil {
		return Ratios{}, fmt.Errorf("left eye: %w", err)
	}
	rightEAR, err := EyeAspectRatio(right)
	if err != nil {
		return Ratios{}, fmt.Errorf("right eye: %w", err)
	}
	mar, err := MouthAspectRatio(mouth)
	if err != nil {
		return Ratios{}, fmt.Errorf("mouth: %w", err)
	}

	return Ratios{
		LeftEAR:  leftEAR,
		RightEAR: rightEAR,
		EAR:      (leftEAR + rightEAR) / 2,
		MAR:      mar,
	}, nil
}

// #endregion calculator

// #region ratios

// EyeAspectRatio computes (|p1-p5| + |p2-p4|) / (2|p0-p3|) for a six-point eye.
func EyeAspectRatio(pts []Point) (float64, error) {
	if len(pts) != EyePoints {
		return 0, fmt.Errorf("eye needs %d points, got %d: %w", EyePoints, len(pts), ErrInvalidInput)
	}
	horizontal := distance(pts[0], pts[3])
	if horizontal == 0 {
		return 0, ErrDegenerate
	}
	a := distance(pts[1], pts[5])
	b := distance(pts[2], pts[4])
	return (a + b) / (2 * horizontal), nil
}

// MouthAspectRatio computes (|p1-p7| + |p2-p6| + |p3-p5|) / (2|p0-p4|) for an
// eight-point mouth.
func MouthAspectRatio(pts []Point) (float64, error) {
	if len(pts) != MouthPoints {
		return 0, fmt.Errorf("mouth needs %d points, got %d: %w", MouthPoints, len(pts), ErrInvalidInput)
	}
	corners := distance(pts[0], pts[4])
	if corners == 0 {
		return 0, ErrDegenerate
	}
	a := distance(pts[1], pts[7])
	b := distance(pts[2], pts[6])
	c := distance(pts[3], pts[5])
	return (a + b + c) / (2 * corners), nil
}

// #endregion ratios

// #region helpers

// gather picks the points for indices out of set, in order.
func gather(set LandmarkSet, indices []int) ([]Point, error) {
	pts := make([]Point, len(indices))
	for i, idx := range indices {
		p, ok := set[idx]
		if !ok {
			return nil, fmt.Errorf("landmark %d missing: %w", idx, ErrInvalidInput)
		}
		pts[i] = p
	}
	return pts, nil
}

// distance is the 2D Euclidean distance; depth is ignored as in the
// classic aspect-ratio formulas.
func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// #endregion helpers
