package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/codec"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/notify"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/session"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/store"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/telemetry"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region router

type api struct {
	registry  *session.Registry
	store     *store.Store // nil without persistence
	hub       *notify.Hub
	metrics   *telemetry.Metrics
	landmarks *codec.LandmarkClient
	log       logrus.FieldLogger
	started   time.Time
}

func (a *api) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", a.hub.ServeWS)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/health", a.health).Methods(http.MethodGet)
	apiRouter.HandleFunc("/metrics", a.metricsSnapshot).Methods(http.MethodGet)
	apiRouter.HandleFunc("/config", a.getConfig).Methods(http.MethodGet)
	apiRouter.HandleFunc("/config", a.putConfig).Methods(http.MethodPut)
	apiRouter.HandleFunc("/sessions", a.listSessions).Methods(http.MethodGet)
	apiRouter.HandleFunc("/sessions/{user}/start", a.startSession).Methods(http.MethodPost)
	apiRouter.HandleFunc("/sessions/{user}/stop", a.stopSession).Methods(http.MethodPost)
	apiRouter.HandleFunc("/history/{user}", a.history).Methods(http.MethodGet)
	apiRouter.HandleFunc("/alerts/{session}", a.alerts).Methods(http.MethodGet)
	return r
}

// #endregion router

// #region handlers

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	landmarks := "disabled"
	if a.landmarks != nil {
		landmarks = "down"
		if a.landmarks.Healthy(r.Context()) {
			landmarks = "up"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"uptime_seconds":    int64(time.Since(a.started).Seconds()),
		"websocket_clients": a.hub.Count(),
		"landmark_service":  landmarks,
		"persistence":       a.store != nil,
	})
}

func (a *api) metricsSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.metrics.Snapshot())
}

func (a *api) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.registry.Config())
}

// putConfig overlays the body on the current config so partial updates work.
// Debounce durations are duration strings such as "1s" or "500ms".
func (a *api) putConfig(w http.ResponseWriter, r *http.Request) {
	cfg := a.registry.Config()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.registry.UpdateConfig(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	a.log.WithField("config", cfg).Info("engine config updated")
	writeJSON(w, http.StatusOK, cfg)
}

func (a *api) listSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.registry.List())
}

func (a *api) startSession(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	s, err := a.registry.Start(user, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": user, "session_id": s.ID()})
}

func (a *api) stopSession(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	summary, err := a.registry.Stop(user, time.Now().UTC())
	switch {
	case errors.Is(err, session.ErrNotActive):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *api) history(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, http.StatusNotImplemented, errors.New("persistence disabled"))
		return
	}
	records, err := a.store.ListSessions(mux.Vars(r)["user"], 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *api) alerts(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, http.StatusNotImplemented, errors.New("persistence disabled"))
		return
	}
	id := mux.Vars(r)["session"]
	if _, err := a.store.GetSession(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	records, err := a.store.ListAlerts(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// #endregion handlers

// #region helpers

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// #endregion helpers
