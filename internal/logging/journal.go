package logging

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"sync"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
	"github.com/oklog/ulid/v2"
)

const journalTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newAlertID(entry AlertEntry) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(entry.FiredAt), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// #region log-alert
// LogAlert writes an alert entry to the alert_log table.
func LogAlert(db *sql.DB, entry AlertEntry) error {
	if entry.AlertID == "" {
		id, err := newAlertID(entry)
		if err != nil {
			return fmt.Errorf("alert id: %w", err)
		}
		entry.AlertID = id
	}

	_, err := db.Exec(
		`INSERT INTO alert_log (alert_id, session_id, kind, fired_at, ear, mar, head_pose)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.AlertID,
		entry.SessionID,
		entry.Kind,
		entry.FiredAt.UTC().Format(journalTimeLayout),
		entry.EAR,
		entry.MAR,
		entry.HeadPose,
	)
	if err != nil {
		return fmt.Errorf("log alert: %w", err)
	}
	return nil
}
// #endregion log-alert

// #region journal-hook
// JournalHook records every dispatched alert that carries a session id.
func JournalHook(db *sql.DB) alert.Hook {
	return func(_ context.Context, a alert.Alert) error {
		if a.SessionID == "" {
			return nil
		}
		return LogAlert(db, AlertEntry{
			SessionID: a.SessionID,
			Kind:      string(a.Kind),
			FiredAt:   a.FiredAt,
			EAR:       a.EAR,
			MAR:       a.MAR,
			HeadPose:  string(a.HeadPose),
		})
	}
}
// #endregion journal-hook
