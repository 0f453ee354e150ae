package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/store"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region main

func main() {
	dbPath := flag.String("db", "", "path to focusguard.db")
	user := flag.String("user", "", "only list sessions of this user")
	last := flag.Int("last", 20, "show N most recent sessions")
	sessionID := flag.String("session", "", "show single session detail with its alert log")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/focusguard.db [--user id] [--last N] [--session id] [--json]")
		os.Exit(2)
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *sessionID != "" {
		err = runDetailMode(st, *sessionID, *jsonOut)
	} else {
		err = runListMode(st, *user, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(st *store.Store, user string, last int, jsonOut bool) error {
	sessions, err := st.ListSessions(user, last)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		return nil
	}
	if jsonOut {
		return printJSON(sessions)
	}

	fmt.Printf("%-10s  %-12s  %-20s  %9s  %7s  %6s  %5s  %7s  %7s\n",
		"Session", "User", "Started", "Duration", "Frames", "Drowsy", "Yawn", "Distr", "Blocked")
	fmt.Printf("%-10s+-%-12s+-%-20s+-%9s+-%7s+-%6s+-%5s+-%7s+-%7s\n",
		"----------", "------------", "--------------------", "---------", "-------", "------", "-----", "-------", "-------")
	for _, s := range sessions {
		fmt.Printf("%-10s  %-12s  %-20s  %9s  %7d  %6d  %5d  %7d  %7d\n",
			shortID(s.SessionID), s.UserID, s.StartedAt.Format("2006-01-02T15:04:05Z"), duration(s),
			s.Frames, s.DrowsyEvents, s.YawnEvents, s.DistractionEvents, s.CameraBlockedEvents)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Session store.SessionRecord `json:"session"`
	Alerts  []store.AlertRecord `json:"alerts"`
}

func runDetailMode(st *store.Store, sessionID string, jsonOut bool) error {
	rec, err := st.GetSession(sessionID)
	if err != nil {
		return err
	}
	alerts, err := st.ListAlerts(sessionID)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(detailOutput{Session: rec, Alerts: alerts})
	}

	fmt.Printf("Session:    %s\n", rec.SessionID)
	fmt.Printf("User:       %s\n", rec.UserID)
	fmt.Printf("Started:    %s\n", rec.StartedAt.Format(time.RFC3339))
	fmt.Printf("Duration:   %s\n", duration(rec))
	fmt.Printf("Frames:     %d (%d with face)\n", rec.Frames, rec.FramesWithFace)
	fmt.Printf("Avg EAR:    %.4f\n", rec.AvgEAR)
	fmt.Printf("Avg MAR:    %.4f\n", rec.AvgMAR)

	fmt.Printf("\nAlert log (%d):\n", len(alerts))
	for _, a := range alerts {
		offset := a.FiredAt.Sub(rec.StartedAt).Round(time.Millisecond)
		fmt.Printf("  +%-10s  %-15s  ear=%.3f  mar=%.3f  pose=%s\n", offset, a.Kind, a.EAR, a.MAR, a.HeadPose)
	}
	return nil
}

// #endregion detail-mode

// #region helpers

func duration(s store.SessionRecord) string {
	if s.EndedAt.IsZero() {
		return "open"
	}
	return s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
