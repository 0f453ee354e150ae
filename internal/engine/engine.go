package engine

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/debounce"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/facemetrics"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/gate"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/headpose"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// #region options

// Dispatcher receives fired alerts. *alert.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(a alert.Alert) bool
}

// Option configures optional collaborators.
type Option func(*Engine)

func WithSolver(s headpose.Solver) Option {
	return func(e *Engine) { e.solver = s }
}

func WithDispatcher(d Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSessionID stamps every dispatched alert with id.
func WithSessionID(id string) Option {
	return func(e *Engine) { e.sessionID = id }
}

// #endregion options

// #region engine

// Engine turns frames into debounced events for one user. Process calls must
// not overlap; UpdateConfig may be called from any goroutine.
type Engine struct {
	config  atomic.Pointer[Config]
	applied *Config

	calc       *facemetrics.Calculator
	solver     headpose.Solver
	brightness *gate.Brightness
	debouncers map[alert.Kind]*debounce.Debouncer

	dispatcher Dispatcher
	log        logrus.FieldLogger
	metrics    *telemetry.Metrics
	sessionID  string

	mu sync.Mutex
}

// New validates config and builds an engine with fresh state.
func New(config Config, opts ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		calc:       facemetrics.NewCalculator(),
		brightness: gate.NewBrightness(config.brightness()),
		debouncers: make(map[alert.Kind]*debounce.Debouncer, len(alert.Kinds)),
	}
	for _, kind := range alert.Kinds {
		e.debouncers[kind] = debounce.New(config.Debounce(kind))
	}
	cfg := config
	e.config.Store(&cfg)
	e.applied = &cfg

	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		e.log = quiet
	}
	return e, nil
}

// #endregion engine

// #region process

// Process analyzes one frame. It returns an error wrapping
// facemetrics.ErrInvalidInput for malformed frames, in which case no
// temporal state is touched.
func (e *Engine) Process(frame Frame) (Result, error) {
	started := time.Now()
	if frame.Timestamp.IsZero() {
		e.metrics.IncrementSkipped()
		return Result{}, fmt.Errorf("frame without timestamp: %w", facemetrics.ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m := FrameMetrics{Timestamp: frame.Timestamp, HeadPose: headpose.Unknown}

	if len(frame.Landmarks) > 0 {
		ratios, err := e.calc.Compute(frame.Landmarks)
		switch {
		case err == nil:
			m.FaceDetected = true
			m.EyeAspectRatio = ratios.EAR
			m.MouthAspectRatio = ratios.MAR
		case errors.Is(err, facemetrics.ErrDegenerate):
			e.log.WithError(err).Debug("degenerate landmarks, treating frame as no face")
		default:
			e.metrics.IncrementSkipped()
			return Result{}, fmt.Errorf("process frame: %w", err)
		}
	}

	cfg := e.syncConfig()

	if m.FaceDetected {
		m.HeadPose, m.Angles = e.classifyPose(frame, cfg.HeadPoseThresholdDegrees)
	} else {
		e.metrics.IncrementNoFace()
	}

	decision := e.brightness.Observe(frame.Brightness)
	m.CameraBlocked = decision.Blocked
	m.DarkFrames = decision.DarkFrames

	conditions := map[alert.Kind]bool{
		alert.Drowsy:        m.FaceDetected && m.EyeAspectRatio < cfg.EyeThreshold,
		alert.Yawn:          m.FaceDetected && m.MouthAspectRatio > cfg.MouthThreshold,
		alert.Distraction:   m.FaceDetected && headpose.IsDistracted(m.HeadPose),
		alert.CameraBlocked: decision.Blocked,
	}

	var triggers []Trigger
	var fired []alert.Kind
	for _, kind := range alert.Kinds {
		out := e.debouncers[kind].Update(conditions[kind], frame.Timestamp)
		if !out.Confirmed {
			continue
		}
		triggers = append(triggers, Trigger{Kind: kind, Fired: out.Fired})
		if out.Fired {
			fired = append(fired, kind)
		}
	}

	m.Drowsy = e.debouncers[alert.Drowsy].State().Confirmed
	m.Yawning = e.debouncers[alert.Yawn].State().Confirmed
	m.Distracted = e.debouncers[alert.Distraction].State().Confirmed

	for _, kind := range fired {
		e.fire(kind, m)
	}

	e.metrics.RecordFrame(frame.Timestamp, time.Since(started))
	return Result{Metrics: m, Triggers: triggers}, nil
}

func (e *Engine) classifyPose(frame Frame, threshold float64) (headpose.Label, headpose.Angles) {
	if frame.Pose != nil {
		return headpose.Classify(frame.Pose.Pitch, frame.Pose.Yaw, threshold), *frame.Pose
	}
	if e.solver == nil {
		return headpose.Unknown, headpose.Angles{}
	}
	angles, err := e.solver.Solve(frame.Landmarks)
	if err != nil {
		e.log.WithError(err).Debug("pose solver failed")
		return headpose.Unknown, headpose.Angles{}
	}
	return headpose.Classify(angles.Pitch, angles.Yaw, threshold), angles
}

func (e *Engine) fire(kind alert.Kind, m FrameMetrics) {
	e.metrics.IncrementFired()
	e.log.WithFields(logrus.Fields{
		"kind":    kind,
		"session": e.sessionID,
		"at":      m.Timestamp.Format(time.RFC3339Nano),
	}).Debug("event confirmed")

	if e.dispatcher == nil {
		return
	}
	e.dispatcher.Dispatch(alert.Alert{
		Kind:      kind,
		SessionID: e.sessionID,
		FiredAt:   m.Timestamp,
		EAR:       m.EyeAspectRatio,
		MAR:       m.MouthAspectRatio,
		HeadPose:  m.HeadPose,
	})
}

// #endregion process

// #region config

// syncConfig pushes a newly stored config into the stateful components.
// Accumulated timers and counters are kept.
func (e *Engine) syncConfig() *Config {
	cfg := e.config.Load()
	if cfg == e.applied {
		return cfg
	}
	e.brightness.SetConfig(cfg.brightness())
	for kind, d := range e.debouncers {
		d.SetConfig(cfg.Debounce(kind))
	}
	e.applied = cfg
	return cfg
}

// UpdateConfig validates config and applies it from the next frame on.
func (e *Engine) UpdateConfig(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	cfg := config
	e.config.Store(&cfg)
	return nil
}

func (e *Engine) Config() Config {
	return *e.config.Load()
}

// #endregion config

// #region state

// Reset clears all temporal state, as at session start or stop.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.debouncers {
		d.Reset()
	}
	e.brightness.Reset()
}

// DebounceState returns a copy of kind's temporal state.
func (e *Engine) DebounceState(kind alert.Kind) (debounce.State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.debouncers[kind]
	if !ok {
		return debounce.State{}, false
	}
	return d.State(), true
}

// SessionID returns the id stamped on dispatched alerts.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// SetSessionID changes the id stamped on alerts from the next frame on.
func (e *Engine) SetSessionID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionID = id
}

// #endregion state
