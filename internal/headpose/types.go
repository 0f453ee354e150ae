package headpose

import "github.com/danielpatrickdp/focusguard/go-engine/internal/facemetrics"

// #region label

// Label is the discrete gaze direction derived from head rotation.
type Label string

const (
	Forward Label = "forward"
	Left    Label = "left"
	Right   Label = "right"
	Up      Label = "up"
	Down    Label = "down"
	Unknown Label = "unknown"
)

// #endregion label

// #region angles

// Angles holds head rotation in degrees. Pitch is rotation about the x axis
// (nodding), Yaw about the y axis (turning), Roll about the z axis.
type Angles struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// #endregion angles

// #region solver

// Solver estimates head rotation from landmarks. Implementations wrap an
// external perspective-n-point solver; the engine treats them as opaque.
type Solver interface {
	Solve(set facemetrics.LandmarkSet) (Angles, error)
}

// SolverFunc adapts a plain function to the Solver interface.
type SolverFunc func(set facemetrics.LandmarkSet) (Angles, error)

// Solve calls f(set).
func (f SolverFunc) Solve(set facemetrics.LandmarkSet) (Angles, error) {
	return f(set)
}

// #endregion solver
