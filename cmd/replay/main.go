package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "fixture JSON file or directory of fixtures")
	verbose := flag.Bool("v", false, "print every frame that fired")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [-v]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixtures/")
		os.Exit(2)
	}

	paths, err := fixturePaths(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "find fixtures: %v\n", err)
		os.Exit(2)
	}

	exitCode := 0
	for _, p := range paths {
		if code := runFixture(p, *verbose); code > exitCode {
			exitCode = code
		}
	}
	os.Exit(exitCode)
}

func fixturePaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	paths, err := filepath.Glob(filepath.Join(path, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no fixtures in %s", path)
	}
	sort.Strings(paths)
	return paths, nil
}

// #endregion main

// #region output

func runFixture(path string, verbose bool) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	steps, err := replay.Replay(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay %s: %v\n", path, err)
		return 2
	}

	fmt.Printf("== %s (%d frames @ %dfps)\n", filepath.Base(path), len(steps), f.FrameRate)
	if f.Description != "" {
		fmt.Printf("   %s\n", f.Description)
	}
	if verbose {
		for _, s := range steps {
			for _, t := range s.Result.Triggers {
				if t.Fired {
					m := s.Result.Metrics
					fmt.Printf("   frame %5d  %-15s ear=%.3f mar=%.3f pose=%s\n",
						s.Index, t.Kind, m.EyeAspectRatio, m.MouthAspectRatio, m.HeadPose)
				}
			}
		}
	}

	return printComparison(f.Expected, replay.Fired(steps))
}

// printComparison outputs a per-kind comparison table and returns the exit code.
func printComparison(expected map[string][]int, fired map[alert.Kind][]int) int {
	fmt.Printf("%-15s| %-20s| %-20s| %s\n", "Kind", "Expected", "Replayed", "Match")
	fmt.Printf("%-15s+%-20s+%-20s+%s\n",
		"---------------", "---------------------", "---------------------", "------")

	mismatched := make(map[alert.Kind]bool)
	for _, m := range replay.Compare(expected, fired) {
		mismatched[m.Kind] = true
	}

	for _, kind := range alert.Kinds {
		match := "OK"
		if mismatched[kind] {
			match = "DIFF"
		}
		fmt.Printf("%-15s| %-20s| %-20s| %s\n",
			kind, formatFrames(expected[string(kind)]), formatFrames(fired[kind]), match)
	}

	fmt.Printf("\nSummary: %d kinds, %d match, %d diverge\n\n",
		len(alert.Kinds), len(alert.Kinds)-len(mismatched), len(mismatched))
	if len(mismatched) > 0 {
		return 1
	}
	return 0
}

func formatFrames(frames []int) string {
	if len(frames) == 0 {
		return "-"
	}
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = fmt.Sprint(f)
	}
	return strings.Join(parts, ",")
}

// #endregion output
