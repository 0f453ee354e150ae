package headpose

import "math"

// #region classify

// Classify maps pitch and yaw (degrees) to a gaze label. Yaw is checked
// before pitch, so a head turned sideways and tilted reports Left or Right.
func Classify(pitch, yaw, threshold float64) Label {
	switch {
	case yaw < -threshold:
		return Left
	case yaw > threshold:
		return Right
	case pitch < -threshold:
		return Down
	case pitch > threshold:
		return Up
	default:
		return Forward
	}
}

// IsDistracted reports whether label points away from the screen.
// Unknown (no face or failed solve) is not a distraction.
func IsDistracted(label Label) bool {
	switch label {
	case Left, Right, Up, Down:
		return true
	default:
		return false
	}
}

// #endregion classify

// #region rotation

// FromRotationVector converts a Rodrigues rotation vector (radians, as
// returned by PnP solvers) to Euler angles in degrees, decomposed as
// R = Rx(pitch) * Ry(yaw) * Rz(roll).
func FromRotationVector(rvec [3]float64) Angles {
	return FromMatrix(rodrigues(rvec))
}

// FromMatrix decomposes a 3x3 rotation matrix into Euler angles in degrees.
func FromMatrix(r [3][3]float64) Angles {
	sy := clampUnit(r[0][2])
	yaw := math.Asin(sy)

	var pitch, roll float64
	if math.Abs(sy) < 1-1e-9 {
		pitch = math.Atan2(-r[1][2], r[2][2])
		roll = math.Atan2(-r[0][1], r[0][0])
	} else {
		// gimbal lock: roll folds into pitch
		pitch = math.Atan2(r[2][1], r[1][1])
	}

	return Angles{
		Pitch: degrees(pitch),
		Yaw:   degrees(yaw),
		Roll:  degrees(roll),
	}
}

func rodrigues(rvec [3]float64) [3][3]float64 {
	theta := math.Sqrt(rvec[0]*rvec[0] + rvec[1]*rvec[1] + rvec[2]*rvec[2])
	if theta == 0 {
		return [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	}
	kx, ky, kz := rvec[0]/theta, rvec[1]/theta, rvec[2]/theta
	c, s := math.Cos(theta), math.Sin(theta)
	v := 1 - c

	return [3][3]float64{
		{c + kx*kx*v, kx*ky*v - kz*s, kx*kz*v + ky*s},
		{ky*kx*v + kz*s, c + ky*ky*v, ky*kz*v - kx*s},
		{kz*kx*v - ky*s, kz*ky*v + kx*s, c + kz*kz*v},
	}
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// #endregion rotation
