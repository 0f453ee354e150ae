package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/stats"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session id has no row.
var ErrNotFound = errors.New("not found")

// TimeLayout is fixed-width so stored timestamps sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region migrations
//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its dialect and filesystem in package globals.
var migrateMu sync.Mutex

func migrate(db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
// #endregion migrations

// #region store-struct
// Store persists monitoring sessions and their alert journal in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// Open opens (or creates) the database at dbPath and applies migrations.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for the alert journal writer.
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion close

// #region sessions
// CreateSession opens a session row for userID and returns its record.
func (s *Store) CreateSession(userID string, startedAt time.Time) (SessionRecord, error) {
	rec := SessionRecord{
		SessionID: uuid.New().String(),
		UserID:    userID,
		StartedAt: startedAt.UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, user_id, started_at) VALUES (?, ?, ?)`,
		rec.SessionID, rec.UserID, rec.StartedAt.Format(TimeLayout),
	)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("insert session: %w", err)
	}
	return rec, nil
}

// EndSession closes a session row and stores its summary.
func (s *Store) EndSession(sessionID string, endedAt time.Time, sum stats.Summary) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET
			ended_at = ?, frames = ?, frames_with_face = ?,
			drowsy_events = ?, yawn_events = ?, distraction_events = ?, camera_blocked_events = ?,
			avg_ear = ?, avg_mar = ?
		 WHERE session_id = ?`,
		endedAt.UTC().Format(TimeLayout), sum.Frames, sum.FramesWithFace,
		sum.Events[alert.Drowsy], sum.Events[alert.Yawn],
		sum.Events[alert.Distraction], sum.Events[alert.CameraBlocked],
		sum.AvgEAR, sum.AvgMAR,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

const sessionColumns = `session_id, user_id, started_at, ended_at, frames, frames_with_face,
	drowsy_events, yawn_events, distraction_events, camera_blocked_events, avg_ear, avg_mar`

// GetSession retrieves one session by id.
func (s *Store) GetSession(sessionID string) (SessionRecord, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return rec, nil
}

// ListSessions returns the most recent sessions for userID, newest first.
// An empty userID lists every user.
func (s *Store) ListSessions(userID string, limit int) ([]SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (SessionRecord, error) {
	var rec SessionRecord
	var started string
	var ended sql.NullString
	err := row.Scan(&rec.SessionID, &rec.UserID, &started, &ended,
		&rec.Frames, &rec.FramesWithFace,
		&rec.DrowsyEvents, &rec.YawnEvents, &rec.DistractionEvents, &rec.CameraBlockedEvents,
		&rec.AvgEAR, &rec.AvgMAR)
	if err != nil {
		return SessionRecord{}, err
	}
	rec.StartedAt, _ = time.Parse(TimeLayout, started)
	if ended.Valid {
		rec.EndedAt, _ = time.Parse(TimeLayout, ended.String)
	}
	return rec, nil
}
// #endregion sessions

// #region alerts
// ListAlerts returns the journal of one session in firing order.
func (s *Store) ListAlerts(sessionID string) ([]AlertRecord, error) {
	rows, err := s.db.Query(
		`SELECT alert_id, session_id, kind, fired_at, ear, mar, head_pose
		 FROM alert_log WHERE session_id = ? ORDER BY fired_at, alert_id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var records []AlertRecord
	for rows.Next() {
		var rec AlertRecord
		var kind, firedAt, pose string
		if err := rows.Scan(&rec.AlertID, &rec.SessionID, &kind, &firedAt, &rec.EAR, &rec.MAR, &pose); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		rec.Kind = alert.Kind(kind)
		rec.FiredAt, _ = time.Parse(TimeLayout, firedAt)
		rec.HeadPose = pose
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion alerts
