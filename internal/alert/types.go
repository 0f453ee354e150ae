package alert

import (
	"context"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/headpose"
)

// #region kind

// Kind identifies one family of physiological event.
type Kind string

const (
	Drowsy        Kind = "drowsy"
	Yawn          Kind = "yawn"
	Distraction   Kind = "distraction"
	CameraBlocked Kind = "camera_blocked"
)

// Kinds lists every kind in a stable order.
var Kinds = []Kind{Drowsy, Yawn, Distraction, CameraBlocked}

// #endregion kind

// #region alert

// Alert is one firing handed to the side-effect hook.
type Alert struct {
	Kind      Kind           `json:"kind"`
	SessionID string         `json:"session_id,omitempty"`
	FiredAt   time.Time      `json:"fired_at"`
	EAR       float64        `json:"ear"`
	MAR       float64        `json:"mar"`
	HeadPose  headpose.Label `json:"head_pose"`
}

// Hook performs the side effect for an alert (play a sound, push a message,
// write a journal row). It runs off the frame path and may block.
type Hook func(ctx context.Context, a Alert) error

// #endregion alert

// #region config

// DispatcherConfig controls the dispatcher's own gating.
type DispatcherConfig struct {
	Cooldowns   map[Kind]time.Duration // per-kind minimum gap, checked per session
	FloodRate   float64                // side effects per second per session, across kinds
	FloodBurst  int
	HookTimeout time.Duration // 0 means no deadline
}

// DefaultDispatcherConfig returns a three second cooldown for every kind.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Cooldowns: map[Kind]time.Duration{
			Drowsy:        3 * time.Second,
			Yawn:          3 * time.Second,
			Distraction:   3 * time.Second,
			CameraBlocked: 3 * time.Second,
		},
		FloodRate:   4,
		FloodBurst:  4,
		HookTimeout: 10 * time.Second,
	}
}

// #endregion config
