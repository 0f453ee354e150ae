package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/telemetry"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

var base = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func noFlood() DispatcherConfig {
	cfg := DefaultDispatcherConfig()
	cfg.FloodRate = 0
	return cfg
}

type recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recorder) hook(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

// #region dispatch-tests

func TestDispatchRunsHook(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	rec := &recorder{}
	d := NewDispatcher(rec.hook, noFlood(), logger, nil)

	if !d.Dispatch(Alert{Kind: Drowsy, FiredAt: base, EAR: 0.1}) {
		t.Fatal("expected first alert to be scheduled")
	}
	d.Wait()
	if rec.count() != 1 {
		t.Fatalf("expected 1 hook call, got %d", rec.count())
	}
	if rec.alerts[0].EAR != 0.1 {
		t.Errorf("expected alert payload to reach the hook, got %+v", rec.alerts[0])
	}
}

func TestDispatchDoesNotBlockOnSlowHook(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	release := make(chan struct{})
	slow := func(ctx context.Context, _ Alert) error {
		<-release
		return nil
	}
	d := NewDispatcher(slow, noFlood(), logger, nil)

	done := make(chan struct{})
	go func() {
		d.Dispatch(Alert{Kind: Yawn, FiredAt: base})
		d.Dispatch(Alert{Kind: Drowsy, FiredAt: base})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on the hook")
	}
	close(release)
	d.Wait()
}

func TestCooldownPerKindAndSession(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	rec := &recorder{}
	metrics := telemetry.NewMetrics()
	d := NewDispatcher(rec.hook, noFlood(), logger, metrics)

	if !d.Dispatch(Alert{Kind: Drowsy, SessionID: "a", FiredAt: base}) {
		t.Fatal("first drowsy should pass")
	}
	if d.Dispatch(Alert{Kind: Drowsy, SessionID: "a", FiredAt: base.Add(2 * time.Second)}) {
		t.Fatal("drowsy inside cooldown should be suppressed")
	}
	if !d.Dispatch(Alert{Kind: Yawn, SessionID: "a", FiredAt: base.Add(2 * time.Second)}) {
		t.Fatal("other kinds have their own cooldown")
	}
	if !d.Dispatch(Alert{Kind: Drowsy, SessionID: "b", FiredAt: base.Add(2 * time.Second)}) {
		t.Fatal("other sessions have their own cooldown")
	}
	if !d.Dispatch(Alert{Kind: Drowsy, SessionID: "a", FiredAt: base.Add(3 * time.Second)}) {
		t.Fatal("drowsy at exactly the cooldown should pass")
	}
	d.Wait()

	if rec.count() != 4 {
		t.Fatalf("expected 4 hook calls, got %d", rec.count())
	}
	s := metrics.Snapshot()
	if s.DispatchScheduled != 4 || s.DispatchSuppressed != 1 {
		t.Errorf("unexpected dispatch counters: %+v", s)
	}
}

func TestResetSessionClearsCooldown(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	rec := &recorder{}
	d := NewDispatcher(rec.hook, noFlood(), logger, nil)

	d.Dispatch(Alert{Kind: Distraction, SessionID: "a", FiredAt: base})
	d.ResetSession("a")
	if !d.Dispatch(Alert{Kind: Distraction, SessionID: "a", FiredAt: base.Add(time.Second)}) {
		t.Fatal("reset session should not be in cooldown")
	}
	d.Wait()
}

func TestFloodLimitAcrossKinds(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	rec := &recorder{}
	cfg := DefaultDispatcherConfig()
	cfg.FloodRate = 1
	cfg.FloodBurst = 2
	d := NewDispatcher(rec.hook, cfg, logger, nil)

	passed := 0
	for i, kind := range Kinds {
		if d.Dispatch(Alert{Kind: kind, SessionID: "s", FiredAt: base.Add(time.Duration(i) * time.Millisecond)}) {
			passed++
		}
	}
	d.Wait()
	if passed != 2 {
		t.Fatalf("expected burst of 2 to pass, got %d", passed)
	}
}

func TestFloodLimitIsPerSession(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	rec := &recorder{}
	cfg := DefaultDispatcherConfig()
	cfg.FloodRate = 1
	cfg.FloodBurst = 1
	d := NewDispatcher(rec.hook, cfg, logger, nil)

	for i, session := range []string{"u1", "u2", "u3", "u4", "u5", "u6"} {
		at := base.Add(time.Duration(i) * time.Millisecond)
		if !d.Dispatch(Alert{Kind: Drowsy, SessionID: session, FiredAt: at}) {
			t.Fatalf("session %s was throttled by other sessions", session)
		}
	}
	if d.Dispatch(Alert{Kind: Yawn, SessionID: "u1", FiredAt: base.Add(10 * time.Millisecond)}) {
		t.Error("expected u1's second alert within a second to be throttled")
	}

	d.ResetSession("u1")
	if !d.Dispatch(Alert{Kind: Yawn, SessionID: "u1", FiredAt: base.Add(20 * time.Millisecond)}) {
		t.Error("ResetSession should clear the session's flood history")
	}
	d.Wait()
	if rec.count() != 7 {
		t.Errorf("expected 7 hook calls, got %d", rec.count())
	}
}

// #endregion dispatch-tests

// #region failure-tests

func TestHookErrorIsLoggedAndCounted(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	metrics := telemetry.NewMetrics()
	failing := func(context.Context, Alert) error { return errors.New("speaker unplugged") }
	d := NewDispatcher(failing, noFlood(), logger, metrics)

	d.Dispatch(Alert{Kind: Drowsy, FiredAt: base})
	d.Wait()

	if metrics.Snapshot().DispatchFailed != 1 {
		t.Fatal("expected failed counter to increment")
	}
	entries := hook.AllEntries()
	if len(entries) != 1 || entries[0].Level != logrus.WarnLevel {
		t.Fatalf("expected one warning, got %v", entries)
	}
}

func TestHookPanicIsRecovered(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	metrics := telemetry.NewMetrics()
	panicky := func(context.Context, Alert) error { panic("audio device gone") }
	d := NewDispatcher(panicky, noFlood(), logger, metrics)

	d.Dispatch(Alert{Kind: Yawn, FiredAt: base})
	d.Wait()

	if metrics.Snapshot().DispatchFailed != 1 {
		t.Fatal("expected panic to count as a failure")
	}
	last := hook.LastEntry()
	if last == nil || last.Level != logrus.ErrorLevel {
		t.Fatalf("expected error log for panic, got %v", last)
	}
}

func TestHookTimeoutCancelsContext(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	cfg := noFlood()
	cfg.HookTimeout = 10 * time.Millisecond
	got := make(chan error, 1)
	d := NewDispatcher(func(ctx context.Context, _ Alert) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	}, cfg, logger, nil)

	d.Dispatch(Alert{Kind: Drowsy, FiredAt: base})
	d.Wait()
	if err := <-got; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

// #endregion failure-tests

// #region fanout-tests

func TestFanoutRunsEveryHook(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	failing := func(context.Context, Alert) error { return errors.New("boom") }

	err := Fanout(first.hook, failing, nil, second.hook)(context.Background(), Alert{Kind: Drowsy})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if first.count() != 1 || second.count() != 1 {
		t.Fatal("a failing hook must not stop the others")
	}
}

func TestLogHookWritesInfo(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	if err := LogHook(logger)(context.Background(), Alert{Kind: Yawn, MAR: 1.6}); err != nil {
		t.Fatal(err)
	}
	last := hook.LastEntry()
	if last == nil || last.Data["kind"] != Yawn {
		t.Fatalf("expected info entry with kind, got %v", last)
	}
}

// #endregion fanout-tests
