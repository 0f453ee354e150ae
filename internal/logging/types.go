package logging

import "time"

// #region config
// Config selects level, colors and the optional rotating log file.
type Config struct {
	Level      string // logrus level name, "info" when empty
	NoColors   bool
	File       string // rotated with lumberjack when set
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultConfig logs at info level to stderr only.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 7,
	}
}
// #endregion config

// #region alert-entry
// AlertEntry is a single row in the alert_log table.
type AlertEntry struct {
	AlertID   string // ULID, generated when empty
	SessionID string
	Kind      string
	FiredAt   time.Time
	EAR       float64
	MAR       float64
	HeadPose  string
}
// #endregion alert-entry
