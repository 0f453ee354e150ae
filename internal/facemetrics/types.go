package facemetrics

import "errors"

// #region errors

// ErrInvalidInput is returned when a point group has the wrong size or a
// landmark set is missing a required index. The frame should be dropped.
var ErrInvalidInput = errors.New("invalid landmark input")

// ErrDegenerate is returned alongside a zero ratio when the reference
// distance of a group is zero. Callers treat the frame as "no face".
var ErrDegenerate = errors.New("degenerate landmark geometry")

// #endregion errors

// #region point

// Point is one landmark in image or normalized coordinates. Z is optional depth.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// LandmarkSet maps a canonical face-mesh index to its point.
// An empty set means no face was detected in the frame.
type LandmarkSet map[int]Point

// #endregion point

// #region indices

// Face-mesh indices for the six-point eye model, ordered outer corner,
// two upper lid, inner corner, two lower lid.
var (
	LeftEye  = [EyePoints]int{33, 160, 158, 133, 153, 144}
	RightEye = [EyePoints]int{362, 385, 387, 263, 373, 380}
)

// Mouth is ordered corner, three upper lip, corner, three lower lip, so that
// pairs (1,7), (2,6), (3,5) are vertical and (0,4) is horizontal.
var Mouth = [MouthPoints]int{62, 41, 12, 271, 292, 403, 15, 179}

// PosePoints are the landmarks handed to the pose solver: both outer eye
// corners, nose tip, both mouth corners and chin.
var PosePoints = [6]int{33, 263, 1, 61, 291, 199}

const (
	EyePoints   = 6
	MouthPoints = 8
)

// #endregion indices

// #region ratios

// Ratios is the per-frame output of the calculator.
type Ratios struct {
	LeftEAR  float64
	RightEAR float64
	EAR      float64 // mean of both eyes
	MAR      float64
}

// #endregion ratios
