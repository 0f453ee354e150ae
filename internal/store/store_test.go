package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/stats"
)

var base = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "focus.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second open should skip applied migrations: %v", err)
	}
	s2.Close()
}

func TestCreateAndEndSession(t *testing.T) {
	s := tempStore(t)

	rec, err := s.CreateSession("user-1", base)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if rec.SessionID == "" {
		t.Fatal("expected session id")
	}

	got, err := s.GetSession(rec.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !got.EndedAt.IsZero() || !got.StartedAt.Equal(base) {
		t.Fatalf("unexpected open session: %+v", got)
	}

	sum := stats.Summary{
		Frames:         300,
		FramesWithFace: 290,
		Events:         map[alert.Kind]int{alert.Drowsy: 2, alert.Yawn: 1},
		AvgEAR:         0.27,
		AvgMAR:         0.6,
	}
	if err := s.EndSession(rec.SessionID, base.Add(10*time.Second), sum); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	got, _ = s.GetSession(rec.SessionID)
	if !got.EndedAt.Equal(base.Add(10 * time.Second)) {
		t.Errorf("expected end time, got %v", got.EndedAt)
	}
	if got.Frames != 300 || got.DrowsyEvents != 2 || got.YawnEvents != 1 || got.DistractionEvents != 0 {
		t.Errorf("summary not stored: %+v", got)
	}
	if got.AvgEAR != 0.27 {
		t.Errorf("expected avg EAR 0.27, got %f", got.AvgEAR)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := tempStore(t)
	if _, err := s.GetSession("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.EndSession("missing", base, stats.Summary{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := tempStore(t)
	for i := 0; i < 3; i++ {
		if _, err := s.CreateSession("user-1", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}
	s.CreateSession("user-2", base)

	recs, err := s.ListSessions("user-1", 2)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2, got %d", len(recs))
	}
	if !recs[0].StartedAt.After(recs[1].StartedAt) {
		t.Error("expected newest first")
	}

	all, _ := s.ListSessions("", 10)
	if len(all) != 4 {
		t.Errorf("expected 4 sessions across users, got %d", len(all))
	}
}

func TestListAlertsOrdered(t *testing.T) {
	s := tempStore(t)
	rec, _ := s.CreateSession("user-1", base)

	insert := `INSERT INTO alert_log (alert_id, session_id, kind, fired_at, ear, mar, head_pose) VALUES (?, ?, ?, ?, ?, ?, ?)`
	s.DB().Exec(insert, "b", rec.SessionID, "drowsy", base.Add(4*time.Second).Format(TimeLayout), 0.1, 0.4, "forward")
	s.DB().Exec(insert, "a", rec.SessionID, "drowsy", base.Add(time.Second).Format(TimeLayout), 0.1, 0.4, "forward")

	alerts, err := s.ListAlerts(rec.SessionID)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(alerts) != 2 || alerts[0].AlertID != "a" || alerts[1].AlertID != "b" {
		t.Fatalf("expected a then b, got %+v", alerts)
	}
	if alerts[0].Kind != alert.Drowsy {
		t.Errorf("expected drowsy kind, got %s", alerts[0].Kind)
	}
}
