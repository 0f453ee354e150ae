package stats

import (
	"sync"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/engine"
)

// Summary is the aggregate of one monitoring session.
type Summary struct {
	Frames         int                `json:"frames"`
	FramesWithFace int                `json:"frames_with_face"`
	Events         map[alert.Kind]int `json:"events"`
	AvgEAR         float64            `json:"avg_ear"`
	AvgMAR         float64            `json:"avg_mar"`
	FirstFrame     time.Time          `json:"first_frame"`
	LastFrame      time.Time          `json:"last_frame"`
}

// Duration is the span between the first and last observed frame.
func (s Summary) Duration() time.Duration {
	if s.FirstFrame.IsZero() {
		return 0
	}
	return s.LastFrame.Sub(s.FirstFrame)
}

// Tracker accumulates per-session statistics from engine results.
// An event is counted once when its kind becomes confirmed.
type Tracker struct {
	mu     sync.Mutex
	prev   map[alert.Kind]bool
	events map[alert.Kind]int

	frames, withFace int
	earSum, marSum   float64
	earN, marN       int
	first, last      time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		prev:   make(map[alert.Kind]bool, len(alert.Kinds)),
		events: make(map[alert.Kind]int, len(alert.Kinds)),
	}
}

// Observe folds one frame result into the totals.
func (t *Tracker) Observe(res engine.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := res.Metrics
	t.frames++
	if t.first.IsZero() {
		t.first = m.Timestamp
	}
	t.last = m.Timestamp

	if m.FaceDetected {
		t.withFace++
	}
	// Zero ratios come from no-face frames and would drag the mean down.
	if m.EyeAspectRatio > 0 {
		t.earSum += m.EyeAspectRatio
		t.earN++
	}
	if m.MouthAspectRatio > 0 {
		t.marSum += m.MouthAspectRatio
		t.marN++
	}

	for _, kind := range alert.Kinds {
		now := res.Confirmed(kind)
		if now && !t.prev[kind] {
			t.events[kind]++
		}
		t.prev[kind] = now
	}
}

func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	events := make(map[alert.Kind]int, len(alert.Kinds))
	for _, kind := range alert.Kinds {
		events[kind] = t.events[kind]
	}
	s := Summary{
		Frames:         t.frames,
		FramesWithFace: t.withFace,
		Events:         events,
		FirstFrame:     t.first,
		LastFrame:      t.last,
	}
	if t.earN > 0 {
		s.AvgEAR = t.earSum / float64(t.earN)
	}
	if t.marN > 0 {
		s.AvgMAR = t.marSum / float64(t.marN)
	}
	return s
}

// Reset starts a fresh session.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prev = make(map[alert.Kind]bool, len(alert.Kinds))
	t.events = make(map[alert.Kind]int, len(alert.Kinds))
	t.frames, t.withFace = 0, 0
	t.earSum, t.marSum = 0, 0
	t.earN, t.marN = 0, 0
	t.first, t.last = time.Time{}, time.Time{}
}
