package main

import (
	"bufio"
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/facemetrics"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/headpose"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/replay"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region main

func main() {
	inPath := flag.String("in", "", "NDJSON frame recording (controller input format)")
	outPath := flag.String("out", "", "output fixture JSON path")
	user := flag.String("user", "", "only export frames of this user")
	rate := flag.Int("rate", 30, "frame rate of the recording")
	desc := flag.String("description", "", "fixture description")
	flag.Parse()

	if *inPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --in frames.ndjson --out fixture.json [--user id] [--rate 30]")
		os.Exit(2)
	}

	if err := run(*inPath, *outPath, *user, *rate, *desc); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

// recordedLine is the subset of a controller input line the export needs.
type recordedLine struct {
	User       string                  `json:"user"`
	Command    string                  `json:"command,omitempty"`
	Brightness float64                 `json:"brightness"`
	Landmarks  facemetrics.LandmarkSet `json:"landmarks,omitempty"`
	Pose       *headpose.Angles        `json:"pose,omitempty"`
}

func run(inPath, outPath, user string, rate int, desc string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	defer in.Close()

	frames, err := extract(in, user)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return errors.New("no frames found")
	}

	if desc == "" {
		desc = fmt.Sprintf("exported from %s", inPath)
	}
	f := &replay.Fixture{
		Description: desc,
		FrameRate:   rate,
		Frames:      frames,
	}

	// The exported fixture pins the current engine's firings as its expectation.
	steps, err := replay.Replay(f)
	if err != nil {
		return fmt.Errorf("replay recording: %w", err)
	}
	f.Expected = expectedFires(replay.Fired(steps))

	if err := replay.SaveFixture(outPath, f); err != nil {
		return err
	}
	fmt.Printf("Exported %d frames (%d fixture entries) to %s\n", len(f.Expand()), len(frames), outPath)
	for kind, idx := range f.Expected {
		fmt.Printf("  %-15s fires at %v\n", kind, idx)
	}
	return nil
}

// extract converts recorded frames into fixture frames, merging identical
// consecutive frames into one entry with a repeat count.
func extract(r io.Reader, user string) ([]replay.FixtureFrame, error) {
	calc := facemetrics.NewCalculator()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var frames []replay.FixtureFrame
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var line recordedLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if line.Command != "" || (user != "" && line.User != user) {
			continue
		}

		fr := replay.FixtureFrame{Brightness: line.Brightness, NoFace: true}
		if len(line.Landmarks) > 0 {
			ratios, err := calc.Compute(line.Landmarks)
			switch {
			case err == nil:
				fr.NoFace = false
				fr.EAR = round(ratios.EAR)
				fr.MAR = round(ratios.MAR)
			case errors.Is(err, facemetrics.ErrDegenerate):
			default:
				// The engine would skip this frame entirely.
				continue
			}
		}
		if !fr.NoFace && line.Pose != nil {
			fr.Pitch = round(line.Pose.Pitch)
			fr.Yaw = round(line.Pose.Yaw)
		}

		frames = appendFrame(frames, fr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return frames, nil
}

func appendFrame(frames []replay.FixtureFrame, fr replay.FixtureFrame) []replay.FixtureFrame {
	fr.Repeat = 1
	if n := len(frames); n > 0 {
		last := frames[n-1]
		last.Repeat = 0
		probe := fr
		probe.Repeat = 0
		if last == probe {
			frames[n-1].Repeat++
			return frames
		}
	}
	return append(frames, fr)
}

func expectedFires(fired map[alert.Kind][]int) map[string][]int {
	out := make(map[string][]int, len(fired))
	for kind, idx := range fired {
		out[string(kind)] = idx
	}
	return out
}

// round keeps four decimals so repeated frames collapse.
func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// #endregion extract
