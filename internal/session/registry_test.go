package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/engine"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/facemetrics"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/store"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/telemetry"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

var base = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func at(i int) time.Time {
	return base.Add(time.Duration(i) * time.Second / 30)
}

func frame(ear float64, i int) engine.Frame {
	return engine.Frame{Landmarks: facemetrics.Synthesize(ear, 0.4), Brightness: 120, Timestamp: at(i)}
}

type fakeDispatcher struct {
	mu     sync.Mutex
	alerts []alert.Alert
	resets []string
}

func (f *fakeDispatcher) Dispatch(a alert.Alert) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return true
}

func (f *fakeDispatcher) ResetSession(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, id)
}

func newRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	if opts.Config == (engine.Config{}) {
		opts.Config = engine.DefaultConfig()
	}
	r, err := NewRegistry(opts)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestGetReusesSession(t *testing.T) {
	metrics := telemetry.NewMetrics()
	r := newRegistry(t, Options{Metrics: metrics})

	a, _ := r.Get("alice")
	b, _ := r.Get("alice")
	if a != b {
		t.Fatal("expected the same session for the same user")
	}
	r.Get("bob")
	if metrics.Snapshot().ActiveSessions != 2 {
		t.Errorf("expected 2 sessions, got %d", metrics.Snapshot().ActiveSessions)
	}
	r.Remove("bob")
	if metrics.Snapshot().ActiveSessions != 1 {
		t.Errorf("expected 1 session after remove, got %d", metrics.Snapshot().ActiveSessions)
	}
}

func TestSessionLifecycleWithStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "focus.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	disp := &fakeDispatcher{}
	r := newRegistry(t, Options{Store: st, Dispatcher: disp})

	s, err := r.Start("alice", at(0))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	id := s.ID()
	if id == "" || !s.Active() {
		t.Fatal("expected an active session with an id")
	}

	for i := 0; i <= 40; i++ {
		if _, err := r.Process("alice", frame(0.1, i)); err != nil {
			t.Fatal(err)
		}
	}
	if len(disp.alerts) != 1 || disp.alerts[0].SessionID != id {
		t.Fatalf("expected one drowsy alert stamped with %s, got %+v", id, disp.alerts)
	}

	summary, err := r.Stop("alice", at(41))
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if summary.Events[alert.Drowsy] != 1 || summary.Frames != 41 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(disp.resets) != 1 || disp.resets[0] != id {
		t.Errorf("expected dispatcher cooldowns reset for %s, got %v", id, disp.resets)
	}

	rec, err := st.GetSession(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.EndedAt.IsZero() || rec.DrowsyEvents != 1 || rec.UserID != "alice" {
		t.Errorf("expected closed session row, got %+v", rec)
	}

	st0, _ := s.Engine.DebounceState(alert.Drowsy)
	if st0.Confirmed || !st0.LastFired.IsZero() {
		t.Error("stop should reset temporal state")
	}

	if _, err := r.Stop("alice", at(50)); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestStartTwiceStopsPrevious(t *testing.T) {
	r := newRegistry(t, Options{})
	first, _ := r.Start("alice", at(0))
	firstID := first.ID()
	second, err := r.Start("alice", at(10))
	if err != nil {
		t.Fatal(err)
	}
	if second.ID() == firstID {
		t.Fatal("expected a new session id")
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	disp := &fakeDispatcher{}
	r := newRegistry(t, Options{Dispatcher: disp})
	r.Start("alice", at(0))
	r.Start("bob", at(0))

	for i := 0; i <= 30; i++ {
		r.Process("alice", frame(0.1, i))
		r.Process("bob", frame(0.3, i))
	}
	bob, _ := r.Get("bob")
	st, _ := bob.Engine.DebounceState(alert.Drowsy)
	if !st.ConditionStart.IsZero() {
		t.Fatal("alice's drowsiness leaked into bob's engine")
	}
	if len(disp.alerts) != 1 {
		t.Fatalf("expected only alice to fire, got %d alerts", len(disp.alerts))
	}
}

func TestUpdateConfigReachesAllEngines(t *testing.T) {
	r := newRegistry(t, Options{})
	alice, _ := r.Get("alice")

	cfg := engine.DefaultConfig()
	cfg.EyeThreshold = 0.2
	if err := r.UpdateConfig(cfg); err != nil {
		t.Fatal(err)
	}
	bob, _ := r.Get("bob")
	if alice.Engine.Config().EyeThreshold != 0.2 || bob.Engine.Config().EyeThreshold != 0.2 {
		t.Fatal("expected existing and new engines to use the updated config")
	}

	cfg.ConsecutiveDarkFrames = 0
	if err := r.UpdateConfig(cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestListSortedByUser(t *testing.T) {
	r := newRegistry(t, Options{})
	r.Start("zed", at(0))
	r.Get("amy")

	infos := r.List()
	if len(infos) != 2 || infos[0].UserID != "amy" || !infos[1].Active {
		t.Fatalf("unexpected list: %+v", infos)
	}
}

func TestSharedDispatcherServesEverySession(t *testing.T) {
	var mu sync.Mutex
	calls := make(map[string]int)
	hook := func(_ context.Context, a alert.Alert) error {
		mu.Lock()
		defer mu.Unlock()
		calls[a.SessionID]++
		return nil
	}
	logger, _ := logtest.NewNullLogger()
	disp := alert.NewDispatcher(hook, alert.DefaultDispatcherConfig(), logger, nil)
	r := newRegistry(t, Options{Dispatcher: disp})

	ids := make(map[string]string)
	for u := 1; u <= 6; u++ {
		user := fmt.Sprintf("u%d", u)
		s, err := r.Start(user, at(0))
		if err != nil {
			t.Fatal(err)
		}
		ids[user] = s.ID()
	}
	for i := 0; i <= 30; i++ {
		for u := 1; u <= 6; u++ {
			res, err := r.Process(fmt.Sprintf("u%d", u), frame(0.05, i))
			if err != nil {
				t.Fatal(err)
			}
			if i == 30 && !res.Fired(alert.Drowsy) {
				t.Fatalf("u%d: expected drowsy to fire on frame 30", u)
			}
		}
	}
	disp.Wait()

	mu.Lock()
	defer mu.Unlock()
	for user, id := range ids {
		if calls[id] != 1 {
			t.Errorf("%s: expected 1 hook call, got %d", user, calls[id])
		}
	}
}

func TestProcessAfterStopIsRejected(t *testing.T) {
	disp := &fakeDispatcher{}
	r := newRegistry(t, Options{Dispatcher: disp})

	if _, err := r.Process("alice", frame(0.05, 0)); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive before Start, got %v", err)
	}

	r.Start("alice", at(0))
	if _, err := r.Stop("alice", at(1)); err != nil {
		t.Fatal(err)
	}
	for i := 2; i <= 40; i++ {
		if _, err := r.Process("alice", frame(0.05, i)); !errors.Is(err, ErrNotActive) {
			t.Fatalf("frame %d: expected ErrNotActive after Stop, got %v", i, err)
		}
	}
	if len(disp.alerts) != 0 {
		t.Fatalf("expected no alerts after stop, got %+v", disp.alerts)
	}
	s, _ := r.Get("alice")
	if s.Stats.Summary().Frames != 0 {
		t.Error("rejected frames must not reach statistics")
	}
}
