package store

import (
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
)

// #region session-record
// SessionRecord is one row of the sessions table. A zero EndedAt means the
// session is still open.
type SessionRecord struct {
	SessionID           string    `json:"session_id"`
	UserID              string    `json:"user_id"`
	StartedAt           time.Time `json:"started_at"`
	EndedAt             time.Time `json:"ended_at,omitempty"`
	Frames              int       `json:"frames"`
	FramesWithFace      int       `json:"frames_with_face"`
	DrowsyEvents        int       `json:"drowsy_events"`
	YawnEvents          int       `json:"yawn_events"`
	DistractionEvents   int       `json:"distraction_events"`
	CameraBlockedEvents int       `json:"camera_blocked_events"`
	AvgEAR              float64   `json:"avg_ear"`
	AvgMAR              float64   `json:"avg_mar"`
}
// #endregion session-record

// #region alert-record
// AlertRecord is one row of the alert_log journal.
type AlertRecord struct {
	AlertID   string     `json:"alert_id"`
	SessionID string     `json:"session_id"`
	Kind      alert.Kind `json:"kind"`
	FiredAt   time.Time  `json:"fired_at"`
	EAR       float64    `json:"ear"`
	MAR       float64    `json:"mar"`
	HeadPose  string     `json:"head_pose"`
}
// #endregion alert-record
