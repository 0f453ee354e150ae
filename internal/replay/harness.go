package replay

import (
	"fmt"
	"sort"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/engine"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/facemetrics"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/headpose"
)

// DefaultStart anchors fixture timestamps when a fixture has no start time.
var DefaultStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// #region types

// Step is the engine's answer for one expanded fixture frame.
type Step struct {
	Index  int
	Result engine.Result
}

// Mismatch is one disagreement between expected and replayed firings.
type Mismatch struct {
	Kind     alert.Kind
	Expected []int
	Replayed []int
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: expected %v, replayed %v", m.Kind, m.Expected, m.Replayed)
}

// #endregion types

// #region expand

// Expand unrolls Repeat counts into one entry per frame.
func (f *Fixture) Expand() []FixtureFrame {
	var out []FixtureFrame
	for _, fr := range f.Frames {
		n := fr.Repeat
		if n < 1 {
			n = 1
		}
		one := fr
		one.Repeat = 0
		for i := 0; i < n; i++ {
			out = append(out, one)
		}
	}
	return out
}

// Timestamp returns the deterministic time of frame i.
func (f *Fixture) Timestamp(i int) time.Time {
	start := f.Start
	if start.IsZero() {
		start = DefaultStart
	}
	return start.Add(time.Duration(i) * time.Second / time.Duration(f.FrameRate))
}

// ToFrame builds the engine input for fixture frame i.
func (f *Fixture) ToFrame(i int, fr FixtureFrame) engine.Frame {
	frame := engine.Frame{Brightness: fr.Brightness, Timestamp: f.Timestamp(i)}
	if !fr.NoFace {
		frame.Landmarks = facemetrics.Synthesize(fr.EAR, fr.MAR)
		frame.Pose = &headpose.Angles{Pitch: fr.Pitch, Yaw: fr.Yaw}
	}
	return frame
}

// #endregion expand

// #region replay

// Replay drives a fresh engine through every fixture frame. Extra options
// (dispatcher, logger, metrics) are passed to the engine.
func Replay(f *Fixture, opts ...engine.Option) ([]Step, error) {
	if f.FrameRate <= 0 {
		return nil, fmt.Errorf("replay: frame rate must be positive, got %d", f.FrameRate)
	}
	eng, err := engine.New(f.Config.ToEngineConfig(), opts...)
	if err != nil {
		return nil, fmt.Errorf("replay engine: %w", err)
	}

	frames := f.Expand()
	steps := make([]Step, 0, len(frames))
	for i, fr := range frames {
		res, err := eng.Process(f.ToFrame(i, fr))
		if err != nil {
			return steps, fmt.Errorf("frame %d: %w", i, err)
		}
		steps = append(steps, Step{Index: i, Result: res})
	}
	return steps, nil
}

// Fired collects the frame indices at which each kind fired.
func Fired(steps []Step) map[alert.Kind][]int {
	out := make(map[alert.Kind][]int)
	for _, s := range steps {
		for _, t := range s.Result.Triggers {
			if t.Fired {
				out[t.Kind] = append(out[t.Kind], s.Index)
			}
		}
	}
	return out
}

// Compare checks replayed firings against the fixture's expectations for
// every kind. Kinds absent from Expected must not fire.
func Compare(expected map[string][]int, replayed map[alert.Kind][]int) []Mismatch {
	var mismatches []Mismatch
	for _, kind := range alert.Kinds {
		want := expected[string(kind)]
		got := replayed[kind]
		if !equalInts(want, got) {
			mismatches = append(mismatches, Mismatch{Kind: kind, Expected: want, Replayed: got})
		}
	}
	sort.Slice(mismatches, func(i, j int) bool { return mismatches[i].Kind < mismatches[j].Kind })
	return mismatches
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// #endregion replay
