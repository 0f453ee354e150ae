package replay

import (
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/debounce"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/engine"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string         `json:"description"`
	FrameRate   int            `json:"frame_rate"`
	Start       time.Time      `json:"start,omitempty"`
	Config      FixtureConfig  `json:"config"`
	Frames      []FixtureFrame `json:"frames"`
	// Expected maps an alert kind to the frame indices where it must fire.
	Expected map[string][]int `json:"expected_fires"`
}

// FixtureFrame describes one frame, or Repeat identical consecutive frames.
type FixtureFrame struct {
	EAR        float64 `json:"ear"`
	MAR        float64 `json:"mar"`
	Pitch      float64 `json:"pitch"`
	Yaw        float64 `json:"yaw"`
	Brightness float64 `json:"brightness"`
	NoFace     bool    `json:"no_face,omitempty"`
	Repeat     int     `json:"repeat,omitempty"`
}

// FixtureConfig overrides engine defaults. Zero or absent fields keep the
// default value.
type FixtureConfig struct {
	EyeThreshold          float64          `json:"eye_threshold,omitempty"`
	MouthThreshold        float64          `json:"mouth_threshold,omitempty"`
	HeadPoseThreshold     float64          `json:"head_pose_threshold,omitempty"`
	MinBrightness         float64          `json:"min_brightness,omitempty"`
	ConsecutiveDarkFrames int              `json:"consecutive_dark_frames,omitempty"`
	Drowsy                *FixtureDebounce `json:"drowsy,omitempty"`
	Yawn                  *FixtureDebounce `json:"yawn,omitempty"`
	Distraction           *FixtureDebounce `json:"distraction,omitempty"`
	CameraBlocked         *FixtureDebounce `json:"camera_blocked,omitempty"`
}

// FixtureDebounce mirrors debounce.Config in milliseconds.
type FixtureDebounce struct {
	MinConfirmMs int64  `json:"min_confirm_ms"`
	CooldownMs   int64  `json:"cooldown_ms"`
	Rearm        string `json:"rearm"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.FrameRate <= 0 {
		return nil, fmt.Errorf("fixture %s: frame_rate must be positive", path)
	}
	return &f, nil
}

// SaveFixture writes f as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToEngineConfig overlays the fixture's overrides on the engine defaults.
func (fc *FixtureConfig) ToEngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if fc.EyeThreshold != 0 {
		cfg.EyeThreshold = fc.EyeThreshold
	}
	if fc.MouthThreshold != 0 {
		cfg.MouthThreshold = fc.MouthThreshold
	}
	if fc.HeadPoseThreshold != 0 {
		cfg.HeadPoseThresholdDegrees = fc.HeadPoseThreshold
	}
	if fc.MinBrightness != 0 {
		cfg.MinBrightness = fc.MinBrightness
	}
	if fc.ConsecutiveDarkFrames != 0 {
		cfg.ConsecutiveDarkFrames = fc.ConsecutiveDarkFrames
	}
	cfg.Drowsy = fc.Drowsy.overlay(cfg.Drowsy)
	cfg.Yawn = fc.Yawn.overlay(cfg.Yawn)
	cfg.Distraction = fc.Distraction.overlay(cfg.Distraction)
	cfg.CameraBlocked = fc.CameraBlocked.overlay(cfg.CameraBlocked)
	return cfg
}

func (fd *FixtureDebounce) overlay(def debounce.Config) debounce.Config {
	if fd == nil {
		return def
	}
	out := debounce.Config{
		MinConfirm: time.Duration(fd.MinConfirmMs) * time.Millisecond,
		Cooldown:   time.Duration(fd.CooldownMs) * time.Millisecond,
		Rearm:      debounce.Rearm(fd.Rearm),
	}
	if out.Rearm == "" {
		out.Rearm = def.Rearm
	}
	return out
}

// FromDebounce converts a debounce config back to fixture form.
func FromDebounce(c debounce.Config) *FixtureDebounce {
	return &FixtureDebounce{
		MinConfirmMs: c.MinConfirm.Milliseconds(),
		CooldownMs:   c.Cooldown.Milliseconds(),
		Rearm:        string(c.Rearm),
	}
}

// #endregion fixture-loader
