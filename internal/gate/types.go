package gate

// #region gate-config
// BrightnessConfig holds the thresholds for camera-blocked detection.
type BrightnessConfig struct {
	MinBrightness      float64 // mean luminance (0-255) below which a frame counts as dark
	RequiredDarkFrames int     // consecutive dark frames before reporting blocked
}

// DefaultBrightnessConfig returns the values tuned for a typical webcam.
func DefaultBrightnessConfig() BrightnessConfig {
	return BrightnessConfig{
		MinBrightness:      30,
		RequiredDarkFrames: 5,
	}
}

// #endregion gate-config

// #region gate-decision
// Decision is the output of one brightness observation.
type Decision struct {
	Blocked    bool
	Dark       bool // this frame alone was below the threshold
	DarkFrames int  // current run of consecutive dark frames
}

// #endregion gate-decision
