package session

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/engine"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/headpose"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/stats"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/store"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/telemetry"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNotActive is returned by Stop and Process for a user without a running
// session.
var ErrNotActive = errors.New("session not active")

// #region types

// Dispatcher is the alert sink shared by every session.
type Dispatcher interface {
	engine.Dispatcher
	ResetSession(sessionID string)
}

// Options wires the collaborators shared by all sessions. Store, Solver,
// Dispatcher and Metrics are optional.
type Options struct {
	Config     engine.Config
	Solver     headpose.Solver
	Dispatcher Dispatcher
	Store      *store.Store
	Metrics    *telemetry.Metrics
	Log        logrus.FieldLogger
}

// Session is one user's engine and statistics.
type Session struct {
	UserID string
	Engine *engine.Engine
	Stats  *stats.Tracker

	mu        sync.Mutex
	sessionID string
	startedAt time.Time
	active    bool
}

// ID returns the current session id, empty before the first Start.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Info is a read-only view of a session for status endpoints.
type Info struct {
	UserID    string        `json:"user_id"`
	SessionID string        `json:"session_id"`
	Active    bool          `json:"active"`
	StartedAt time.Time     `json:"started_at"`
	Summary   stats.Summary `json:"summary"`
}

// #endregion types

// #region registry

// Registry owns one session per user. Its mutex guards only the map;
// sessions never share mutable state.
type Registry struct {
	opts Options

	mu       sync.Mutex
	config   engine.Config
	sessions map[string]*Session
}

func NewRegistry(opts Options) (*Registry, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Log == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		opts.Log = quiet
	}
	return &Registry{
		opts:     opts,
		config:   opts.Config,
		sessions: make(map[string]*Session),
	}, nil
}

// Get returns the session for userID, creating it on first use.
func (r *Registry) Get(userID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		return s, nil
	}

	engineOpts := []engine.Option{
		engine.WithLogger(r.opts.Log.WithField("user", userID)),
		engine.WithMetrics(r.opts.Metrics),
	}
	if r.opts.Solver != nil {
		engineOpts = append(engineOpts, engine.WithSolver(r.opts.Solver))
	}
	if r.opts.Dispatcher != nil {
		engineOpts = append(engineOpts, engine.WithDispatcher(r.opts.Dispatcher))
	}
	eng, err := engine.New(r.config, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("engine for %s: %w", userID, err)
	}

	s := &Session{UserID: userID, Engine: eng, Stats: stats.NewTracker()}
	r.sessions[userID] = s
	r.opts.Metrics.SetActiveSessions(len(r.sessions))
	return s, nil
}

// Remove drops a user's session entirely.
func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	r.opts.Metrics.SetActiveSessions(len(r.sessions))
}

// List returns a snapshot of every session sorted by user id.
func (r *Registry) List() []Info {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		infos = append(infos, Info{
			UserID:    s.UserID,
			SessionID: s.sessionID,
			Active:    s.active,
			StartedAt: s.startedAt,
			Summary:   s.Stats.Summary(),
		})
		s.mu.Unlock()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].UserID < infos[j].UserID })
	return infos
}

// UpdateConfig validates cfg and applies it to every engine and to sessions
// created later.
func (r *Registry) UpdateConfig(cfg engine.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = cfg
	for _, s := range r.sessions {
		if err := s.Engine.UpdateConfig(cfg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Config() engine.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config
}

// #endregion registry

// #region lifecycle

// Start begins a monitoring session for userID with fresh temporal state.
// A session that is already running is stopped first.
func (r *Registry) Start(userID string, at time.Time) (*Session, error) {
	s, err := r.Get(userID)
	if err != nil {
		return nil, err
	}
	if s.Active() {
		if _, err := r.Stop(userID, at); err != nil {
			return nil, err
		}
	}

	id := uuid.New().String()
	if r.opts.Store != nil {
		rec, err := r.opts.Store.CreateSession(userID, at)
		if err != nil {
			return nil, fmt.Errorf("start session: %w", err)
		}
		id = rec.SessionID
	}

	s.Engine.Reset()
	s.Engine.SetSessionID(id)
	s.Stats.Reset()

	s.mu.Lock()
	s.sessionID = id
	s.startedAt = at
	s.active = true
	s.mu.Unlock()

	r.opts.Log.WithFields(logrus.Fields{"user": userID, "session": id}).Info("session started")
	return s, nil
}

// Stop ends the running session for userID and returns its summary.
func (r *Registry) Stop(userID string, at time.Time) (stats.Summary, error) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	r.mu.Unlock()
	if !ok || !s.Active() {
		return stats.Summary{}, fmt.Errorf("stop %s: %w", userID, ErrNotActive)
	}

	summary := s.Stats.Summary()
	id := s.ID()
	if r.opts.Store != nil {
		if err := r.opts.Store.EndSession(id, at, summary); err != nil {
			return summary, fmt.Errorf("stop session: %w", err)
		}
	}
	if r.opts.Dispatcher != nil {
		r.opts.Dispatcher.ResetSession(id)
	}

	s.Engine.Reset()
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()

	r.opts.Log.WithFields(logrus.Fields{
		"user":    userID,
		"session": id,
		"frames":  summary.Frames,
	}).Info("session stopped")
	return summary, nil
}

// Process runs one frame through the user's engine and statistics. Frames
// for a user without a running session are rejected with ErrNotActive.
func (r *Registry) Process(userID string, frame engine.Frame) (engine.Result, error) {
	s, err := r.Get(userID)
	if err != nil {
		return engine.Result{}, err
	}
	if !s.Active() {
		return engine.Result{}, fmt.Errorf("process %s: %w", userID, ErrNotActive)
	}
	res, err := s.Engine.Process(frame)
	if err != nil {
		return engine.Result{}, err
	}
	s.Stats.Observe(res)
	return res, nil
}

// #endregion lifecycle
