package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/debounce"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/engine"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/logging"
	"github.com/joho/godotenv"
)

// Config is everything the controller needs at startup.
type Config struct {
	HTTPAddr         string
	DBPath           string // empty disables persistence
	LandmarkAddr     string // empty disables the landmark RPC client
	MaxMessageSizeMB int
	Environment      string

	Logging    logging.Config
	Engine     engine.Config
	Dispatcher alert.DispatcherConfig
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

// Load reads the given .env files (".env" when none are named), then the
// process environment. Missing files are ignored, variables already set in
// the environment win over file values.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	r := &envReader{}
	logCfg := logging.DefaultConfig()
	logCfg.Level = r.str("LOG_LEVEL", logCfg.Level)
	logCfg.File = r.str("LOG_FILE", "")
	logCfg.NoColors = r.boolean("LOG_NO_COLORS", false)

	cfg := &Config{
		HTTPAddr:         r.str("HTTP_ADDR", ":8081"),
		DBPath:           r.str("DB_PATH", "focusguard.db"),
		LandmarkAddr:     r.str("LANDMARK_SERVICE_ADDR", ""),
		MaxMessageSizeMB: r.integer("MAX_MESSAGE_SIZE_MB", 16),
		Environment:      r.str("ENVIRONMENT", "production"),
		Logging:          logCfg,
		Engine:           loadEngine(r),
		Dispatcher:       loadDispatcher(r),
	}
	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEngine(r *envReader) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.EyeThreshold = r.float("EYE_THRESHOLD", cfg.EyeThreshold)
	cfg.MouthThreshold = r.float("MOUTH_THRESHOLD", cfg.MouthThreshold)
	cfg.HeadPoseThresholdDegrees = r.float("HEAD_POSE_THRESHOLD", cfg.HeadPoseThresholdDegrees)
	cfg.MinBrightness = r.float("MIN_BRIGHTNESS", cfg.MinBrightness)
	cfg.ConsecutiveDarkFrames = r.integer("CONSECUTIVE_DARK_FRAMES", cfg.ConsecutiveDarkFrames)
	cfg.Drowsy = loadDebounce(r, "DROWSY", cfg.Drowsy)
	cfg.Yawn = loadDebounce(r, "YAWN", cfg.Yawn)
	cfg.Distraction = loadDebounce(r, "DISTRACTION", cfg.Distraction)
	cfg.CameraBlocked = loadDebounce(r, "CAMERA_BLOCKED", cfg.CameraBlocked)
	return cfg
}

func loadDebounce(r *envReader, prefix string, def debounce.Config) debounce.Config {
	return debounce.Config{
		MinConfirm: r.duration(prefix+"_MIN_CONFIRM", def.MinConfirm),
		Cooldown:   r.duration(prefix+"_COOLDOWN", def.Cooldown),
		Rearm:      debounce.Rearm(r.str(prefix+"_REARM", string(def.Rearm))),
	}
}

func loadDispatcher(r *envReader) alert.DispatcherConfig {
	cfg := alert.DefaultDispatcherConfig()
	cooldown := r.duration("ALERT_COOLDOWN", 0)
	for _, kind := range alert.Kinds {
		key := "ALERT_COOLDOWN_" + strings.ToUpper(string(kind))
		def := cfg.Cooldowns[kind]
		if cooldown > 0 {
			def = cooldown
		}
		cfg.Cooldowns[kind] = r.duration(key, def)
	}
	cfg.FloodRate = r.float("ALERT_FLOOD_RATE", cfg.FloodRate)
	cfg.FloodBurst = r.integer("ALERT_FLOOD_BURST", cfg.FloodBurst)
	cfg.HookTimeout = r.duration("ALERT_HOOK_TIMEOUT", cfg.HookTimeout)
	return cfg
}

// #region env-reader

// envReader collects parse errors so every bad variable is reported at once.
type envReader struct {
	errs []error
}

func (r *envReader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *envReader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (r *envReader) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

// #endregion env-reader
