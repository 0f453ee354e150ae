package headpose

import (
	"errors"
	"math"
	"testing"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/facemetrics"
)

// #region classify-tests

func TestClassify_Directions(t *testing.T) {
	const th = 10.0
	cases := []struct {
		name       string
		pitch, yaw float64
		want       Label
	}{
		{"forward", 0, 0, Forward},
		{"left", 0, -15, Left},
		{"right", 0, 15, Right},
		{"down", -15, 0, Down},
		{"up", 15, 0, Up},
		{"on threshold is forward", 10, -10, Forward},
	}
	for _, c := range cases {
		if got := Classify(c.pitch, c.yaw, th); got != c.want {
			t.Errorf("%s: expected %s, got %s", c.name, c.want, got)
		}
	}
}

func TestClassify_YawBeatsPitch(t *testing.T) {
	const th = 10.0
	if got := Classify(th+1, th+1, th); got != Right {
		t.Errorf("expected right when both exceed, got %s", got)
	}
	if got := Classify(th+1, -(th + 1), th); got != Left {
		t.Errorf("expected left when both exceed, got %s", got)
	}
	if got := Classify(-(th + 1), th+1, th); got != Right {
		t.Errorf("expected right over down, got %s", got)
	}
}

func TestIsDistracted(t *testing.T) {
	for _, l := range []Label{Left, Right, Up, Down} {
		if !IsDistracted(l) {
			t.Errorf("%s should be distracted", l)
		}
	}
	for _, l := range []Label{Forward, Unknown} {
		if IsDistracted(l) {
			t.Errorf("%s should not be distracted", l)
		}
	}
}

// #endregion classify-tests

// #region rotation-tests

func TestFromRotationVector_Identity(t *testing.T) {
	a := FromRotationVector([3]float64{})
	if a != (Angles{}) {
		t.Errorf("expected zero angles, got %+v", a)
	}
}

func TestFromRotationVector_SingleAxis(t *testing.T) {
	rad := 20 * math.Pi / 180

	pitch := FromRotationVector([3]float64{rad, 0, 0})
	if math.Abs(pitch.Pitch-20) > 1e-6 || math.Abs(pitch.Yaw) > 1e-6 {
		t.Errorf("x-axis rotation: expected pitch 20, got %+v", pitch)
	}

	yaw := FromRotationVector([3]float64{0, -rad, 0})
	if math.Abs(yaw.Yaw+20) > 1e-6 || math.Abs(yaw.Pitch) > 1e-6 {
		t.Errorf("y-axis rotation: expected yaw -20, got %+v", yaw)
	}
	if Classify(yaw.Pitch, yaw.Yaw, 10) != Left {
		t.Errorf("expected yaw -20 to classify as left")
	}
}

func TestSolverFunc(t *testing.T) {
	want := Angles{Pitch: 1, Yaw: 2}
	var s Solver = SolverFunc(func(facemetrics.LandmarkSet) (Angles, error) {
		return want, nil
	})
	got, err := s.Solve(nil)
	if err != nil || got != want {
		t.Fatalf("expected %+v, got %+v (%v)", want, got, err)
	}

	failing := SolverFunc(func(facemetrics.LandmarkSet) (Angles, error) {
		return Angles{}, errors.New("no solution")
	})
	if _, err := failing.Solve(nil); err == nil {
		t.Fatal("expected error")
	}
}

// #endregion rotation-tests
