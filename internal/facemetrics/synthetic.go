package facemetrics

// Synthesize builds a landmark set whose eyes both measure ear and whose
// mouth measures mar. Pose points are filled with a frontal face layout so
// the set can also be handed to a solver. Used by replay fixtures and tests.
func Synthesize(ear, mar float64) LandmarkSet {
	set := LandmarkSet{}
	placeEye(set, LeftEye, 0, ear)
	placeEye(set, RightEye, 2, ear)

	// Pairs (1,7), (2,6), (3,5) each have length v, corners are 1 apart.
	v := 2 * mar / 3
	mouth := [MouthPoints]Point{
		{X: 0.5, Y: 2},
		{X: 0.75, Y: 2 + v/2},
		{X: 1.0, Y: 2 + v/2},
		{X: 1.25, Y: 2 + v/2},
		{X: 1.5, Y: 2},
		{X: 1.25, Y: 2 - v/2},
		{X: 1.0, Y: 2 - v/2},
		{X: 0.75, Y: 2 - v/2},
	}
	for i, idx := range Mouth {
		set[idx] = mouth[i]
	}

	// 33 and 263 are already eye corners.
	set[1] = Point{X: 1.5, Y: 1}
	set[61] = Point{X: 0.5, Y: 2}
	set[291] = Point{X: 1.5, Y: 2}
	set[199] = Point{X: 1, Y: 3}
	return set
}

func placeEye(set LandmarkSet, indices [EyePoints]int, offsetX, h float64) {
	pts := [EyePoints]Point{
		{X: offsetX, Y: 0},
		{X: offsetX + 1.0/3, Y: -h / 2},
		{X: offsetX + 2.0/3, Y: -h / 2},
		{X: offsetX + 1, Y: 0},
		{X: offsetX + 2.0/3, Y: h / 2},
		{X: offsetX + 1.0/3, Y: h / 2},
	}
	for i, idx := range indices {
		set[idx] = pts[i]
	}
}
