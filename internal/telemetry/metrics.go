package telemetry

import (
	"sync/atomic"
	"time"
)

// Metrics counts engine and dispatcher activity. All methods are safe for
// concurrent use; a nil *Metrics is a valid no-op sink.
type Metrics struct {
	framesProcessed atomic.Int64
	framesSkipped   atomic.Int64
	framesNoFace    atomic.Int64
	totalLatency    atomic.Int64 // microseconds
	lastFrameUnix   atomic.Int64

	alertsFired        atomic.Int64
	dispatchScheduled  atomic.Int64
	dispatchSuppressed atomic.Int64
	dispatchFailed     atomic.Int64

	activeSessions atomic.Int32
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordFrame(at time.Time, latency time.Duration) {
	if m == nil {
		return
	}
	m.framesProcessed.Add(1)
	m.totalLatency.Add(latency.Microseconds())
	m.lastFrameUnix.Store(at.Unix())
}

func (m *Metrics) IncrementSkipped() {
	if m == nil {
		return
	}
	m.framesSkipped.Add(1)
}

func (m *Metrics) IncrementNoFace() {
	if m == nil {
		return
	}
	m.framesNoFace.Add(1)
}

func (m *Metrics) IncrementFired() {
	if m == nil {
		return
	}
	m.alertsFired.Add(1)
}

func (m *Metrics) IncrementScheduled() {
	if m == nil {
		return
	}
	m.dispatchScheduled.Add(1)
}

func (m *Metrics) IncrementSuppressed() {
	if m == nil {
		return
	}
	m.dispatchSuppressed.Add(1)
}

func (m *Metrics) IncrementFailed() {
	if m == nil {
		return
	}
	m.dispatchFailed.Add(1)
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Store(int32(n))
}

// Snapshot is a point-in-time copy suitable for JSON encoding.
type Snapshot struct {
	FramesProcessed    int64   `json:"frames_processed"`
	FramesSkipped      int64   `json:"frames_skipped"`
	FramesNoFace       int64   `json:"frames_no_face"`
	AvgLatencyMs       float64 `json:"avg_latency_ms"`
	LastFrameUnix      int64   `json:"last_frame_unix"`
	AlertsFired        int64   `json:"alerts_fired"`
	DispatchScheduled  int64   `json:"dispatch_scheduled"`
	DispatchSuppressed int64   `json:"dispatch_suppressed"`
	DispatchFailed     int64   `json:"dispatch_failed"`
	ActiveSessions     int     `json:"active_sessions"`
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	frames := m.framesProcessed.Load()
	var avg float64
	if frames > 0 {
		avg = float64(m.totalLatency.Load()) / float64(frames) / 1000
	}
	return Snapshot{
		FramesProcessed:    frames,
		FramesSkipped:      m.framesSkipped.Load(),
		FramesNoFace:       m.framesNoFace.Load(),
		AvgLatencyMs:       avg,
		LastFrameUnix:      m.lastFrameUnix.Load(),
		AlertsFired:        m.alertsFired.Load(),
		DispatchScheduled:  m.dispatchScheduled.Load(),
		DispatchSuppressed: m.dispatchSuppressed.Load(),
		DispatchFailed:     m.dispatchFailed.Load(),
		ActiveSessions:     int(m.activeSessions.Load()),
	}
}
