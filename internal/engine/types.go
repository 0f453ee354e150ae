package engine

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/debounce"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/facemetrics"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/gate"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/headpose"
	"github.com/go-playground/validator/v10"
)

// #region config

// Config is the live-tunable detection configuration.
type Config struct {
	EyeThreshold             float64 `json:"eye_threshold" validate:"gt=0,lt=1"`
	MouthThreshold           float64 `json:"mouth_threshold" validate:"gt=0"`
	HeadPoseThresholdDegrees float64 `json:"head_pose_threshold_degrees" validate:"gt=0,lte=90"`
	MinBrightness            float64 `json:"min_brightness" validate:"gte=0,lte=255"`
	ConsecutiveDarkFrames    int     `json:"consecutive_dark_frames" validate:"gte=1"`

	Drowsy        debounce.Config `json:"drowsy"`
	Yawn          debounce.Config `json:"yawn"`
	Distraction   debounce.Config `json:"distraction"`
	CameraBlocked debounce.Config `json:"camera_blocked"`
}

func DefaultConfig() Config {
	return Config{
		EyeThreshold:             0.15,
		MouthThreshold:           1.35,
		HeadPoseThresholdDegrees: 10,
		MinBrightness:            30,
		ConsecutiveDarkFrames:    5,
		Drowsy: debounce.Config{
			MinConfirm: time.Second,
			Cooldown:   3 * time.Second,
			Rearm:      debounce.RearmRepeat,
		},
		Yawn: debounce.Config{
			MinConfirm: time.Second,
			Cooldown:   2 * time.Second,
			Rearm:      debounce.RearmOnce,
		},
		Distraction: debounce.Config{
			MinConfirm: 5 * time.Second,
			Cooldown:   3 * time.Second,
			Rearm:      debounce.RearmRepeat,
		},
		CameraBlocked: debounce.Config{
			MinConfirm: 0,
			Cooldown:   3 * time.Second,
			Rearm:      debounce.RearmOnce,
		},
	}
}

var validate = validator.New()

// Validate checks every threshold and timing range.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	return nil
}

// Debounce returns the timing rules for kind.
func (c Config) Debounce(kind alert.Kind) debounce.Config {
	switch kind {
	case alert.Drowsy:
		return c.Drowsy
	case alert.Yawn:
		return c.Yawn
	case alert.Distraction:
		return c.Distraction
	default:
		return c.CameraBlocked
	}
}

func (c Config) brightness() gate.BrightnessConfig {
	return gate.BrightnessConfig{
		MinBrightness:      c.MinBrightness,
		RequiredDarkFrames: c.ConsecutiveDarkFrames,
	}
}

// #endregion config

// #region frame

// Frame is one unit of input. An empty Landmarks set means no face was found.
// Brightness is the mean luminance on a 0-255 scale. Pose, when set, is a
// head rotation already solved upstream and takes precedence over the solver.
type Frame struct {
	Landmarks  facemetrics.LandmarkSet `json:"landmarks,omitempty"`
	Brightness float64                 `json:"brightness"`
	Timestamp  time.Time               `json:"timestamp"`
	Pose       *headpose.Angles        `json:"pose,omitempty"`
}

// #endregion frame

// #region result

// FrameMetrics is the per-frame analysis.
type FrameMetrics struct {
	Timestamp        time.Time       `json:"timestamp"`
	FaceDetected     bool            `json:"face_detected"`
	EyeAspectRatio   float64         `json:"ear"`
	MouthAspectRatio float64         `json:"mar"`
	HeadPose         headpose.Label  `json:"head_pose"`
	Angles           headpose.Angles `json:"angles"`
	CameraBlocked    bool            `json:"camera_blocked"`
	DarkFrames       int             `json:"dark_frames"`

	// Confirmed flags after debouncing.
	Drowsy     bool `json:"drowsy"`
	Yawning    bool `json:"yawning"`
	Distracted bool `json:"distracted"`
}

// Trigger reports one confirmed kind and whether it fired on this frame.
type Trigger struct {
	Kind  alert.Kind `json:"kind"`
	Fired bool       `json:"fired"`
}

// Result is what Process returns for a frame.
type Result struct {
	Metrics  FrameMetrics `json:"metrics"`
	Triggers []Trigger    `json:"triggers,omitempty"`
}

// Confirmed reports whether kind is currently confirmed.
func (r Result) Confirmed(kind alert.Kind) bool {
	for _, t := range r.Triggers {
		if t.Kind == kind {
			return true
		}
	}
	return false
}

// Fired reports whether kind fired on this frame.
func (r Result) Fired(kind alert.Kind) bool {
	for _, t := range r.Triggers {
		if t.Kind == kind {
			return t.Fired
		}
	}
	return false
}

// #endregion result
