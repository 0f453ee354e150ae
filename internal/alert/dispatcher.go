package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/telemetry"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// #region dispatcher

type cooldownKey struct {
	session string
	kind    Kind
}

// Dispatcher runs alert side effects on their own goroutines. It keeps its
// own cooldown table so duplicate firings from several callers collapse.
// Cooldowns and the flood limit are tracked per session, so one user's
// alerts never suppress another's.
type Dispatcher struct {
	hook    Hook
	config  DispatcherConfig
	log     logrus.FieldLogger
	metrics *telemetry.Metrics

	mu       sync.Mutex
	lastSent map[cooldownKey]time.Time
	flood    map[string]*rate.Limiter // per session

	inflight sync.WaitGroup
}

// NewDispatcher creates a dispatcher around hook. metrics may be nil.
func NewDispatcher(hook Hook, config DispatcherConfig, log logrus.FieldLogger, metrics *telemetry.Metrics) *Dispatcher {
	return &Dispatcher{
		hook:     hook,
		config:   config,
		log:      log,
		metrics:  metrics,
		lastSent: make(map[cooldownKey]time.Time),
		flood:    make(map[string]*rate.Limiter),
	}
}

// limiter returns the flood limiter of one session. Callers hold d.mu.
func (d *Dispatcher) limiter(sessionID string) *rate.Limiter {
	if l, ok := d.flood[sessionID]; ok {
		return l
	}
	limit := rate.Inf
	if d.config.FloodRate > 0 {
		limit = rate.Limit(d.config.FloodRate)
	}
	burst := d.config.FloodBurst
	if burst < 1 {
		burst = 1
	}
	l := rate.NewLimiter(limit, burst)
	d.flood[sessionID] = l
	return l
}

// #endregion dispatcher

// #region dispatch

// Dispatch schedules the side effect for a and returns immediately.
// It reports false when the alert was suppressed by cooldown or flood limit.
func (d *Dispatcher) Dispatch(a Alert) bool {
	if !d.admit(a) {
		d.metrics.IncrementSuppressed()
		d.log.WithFields(logrus.Fields{
			"kind":    a.Kind,
			"session": a.SessionID,
		}).Debug("alert suppressed by dispatcher")
		return false
	}

	d.metrics.IncrementScheduled()
	d.inflight.Add(1)
	go d.run(a)
	return true
}

func (d *Dispatcher) admit(a Alert) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := cooldownKey{session: a.SessionID, kind: a.Kind}
	if last, ok := d.lastSent[key]; ok {
		if a.FiredAt.Sub(last) < d.config.Cooldowns[a.Kind] {
			return false
		}
	}
	if !d.limiter(a.SessionID).AllowN(a.FiredAt, 1) {
		return false
	}
	d.lastSent[key] = a.FiredAt
	return true
}

func (d *Dispatcher) run(a Alert) {
	defer d.inflight.Done()

	entry := d.log.WithFields(logrus.Fields{
		"kind":    a.Kind,
		"session": a.SessionID,
	})
	defer func() {
		if r := recover(); r != nil {
			d.metrics.IncrementFailed()
			entry.WithField("panic", r).Error("alert hook panicked")
		}
	}()

	ctx, cancel := d.hookContext()
	defer cancel()

	if err := d.hook(ctx, a); err != nil {
		d.metrics.IncrementFailed()
		entry.WithError(err).Warn("alert hook failed")
	}
}

func (d *Dispatcher) hookContext() (context.Context, context.CancelFunc) {
	if d.config.HookTimeout > 0 {
		return context.WithTimeout(context.Background(), d.config.HookTimeout)
	}
	return context.WithCancel(context.Background())
}

// Wait blocks until every scheduled side effect has returned.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// ResetSession forgets the cooldown and flood history of one session.
func (d *Dispatcher) ResetSession(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.flood, sessionID)
	for key := range d.lastSent {
		if key.session == sessionID {
			delete(d.lastSent, key)
		}
	}
}

// #endregion dispatch

// #region hooks

// Fanout runs hooks in order and joins their errors. Nil hooks are skipped
// and one failing hook does not stop the rest.
func Fanout(hooks ...Hook) Hook {
	return func(ctx context.Context, a Alert) error {
		var errs []error
		for i, h := range hooks {
			if h == nil {
				continue
			}
			if err := h(ctx, a); err != nil {
				errs = append(errs, fmt.Errorf("hook %d: %w", i, err))
			}
		}
		return errors.Join(errs...)
	}
}

// LogHook writes each alert to log at info level.
func LogHook(log logrus.FieldLogger) Hook {
	return func(_ context.Context, a Alert) error {
		log.WithFields(logrus.Fields{
			"kind":      a.Kind,
			"session":   a.SessionID,
			"ear":       a.EAR,
			"mar":       a.MAR,
			"head_pose": a.HeadPose,
		}).Info("alert fired")
		return nil
	}
}

// #endregion hooks
