package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/codec"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/config"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/logging"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/notify"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/session"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/store"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// #region main

func main() {
	envFile := flag.String("env", "", "optional .env file (defaults to ./.env when present)")
	emit := flag.Bool("results", false, "write one JSON result per processed frame to stdout")
	flag.Parse()

	if err := run(*envFile, *emit); err != nil {
		fmt.Fprintf(os.Stderr, "controller: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile string, emit bool) error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}

	log, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.NewMetrics()
	hub := notify.NewHub(log)
	defer hub.Close()

	hooks := []alert.Hook{alert.LogHook(log), hub.HandleAlert}

	var st *store.Store
	if cfg.DBPath != "" {
		st, err = store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		hooks = append(hooks, logging.JournalHook(st.DB()))
	}

	dispatcher := alert.NewDispatcher(alert.Fanout(hooks...), cfg.Dispatcher, log, metrics)
	defer dispatcher.Wait()

	var landmarks *codec.LandmarkClient
	if cfg.LandmarkAddr != "" {
		cc := codec.DefaultClientConfig(cfg.LandmarkAddr)
		cc.MaxMessageSizeMB = cfg.MaxMessageSizeMB
		landmarks, err = codec.NewLandmarkClient(cc)
		if err != nil {
			return err
		}
		defer landmarks.Close()
	}

	registry, err := session.NewRegistry(session.Options{
		Config:     cfg.Engine,
		Dispatcher: dispatcher,
		Store:      st,
		Metrics:    metrics,
		Log:        log,
	})
	if err != nil {
		return err
	}
	defer stopAll(registry, log)

	a := &api{
		registry:  registry,
		store:     st,
		hub:       hub,
		metrics:   metrics,
		landmarks: landmarks,
		log:       log,
		started:   time.Now(),
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":      cfg.HTTPAddr,
			"db":        cfg.DBPath,
			"landmarks": cfg.LandmarkAddr,
			"env":       cfg.Environment,
		}).Info("controller listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var out io.Writer
	if emit {
		out = os.Stdout
	}
	src := &frameSource{
		registry:  registry,
		landmarks: landmarks,
		log:       log,
		out:       out,
		maxLine:   cfg.MaxMessageSizeMB * 1024 * 1024,
		now:       func() time.Time { return time.Now().UTC() },
	}
	frames := make(chan error, 1)
	go func() { frames <- src.run(ctx, os.Stdin) }()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case err := <-frames:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("frame input failed")
		}
		log.Info("frame input closed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	return nil
}

// #endregion main

// #region helpers

// stopAll closes every active session so its summary reaches the store.
func stopAll(registry *session.Registry, log logrus.FieldLogger) {
	now := time.Now().UTC()
	for _, info := range registry.List() {
		if !info.Active {
			continue
		}
		if _, err := registry.Stop(info.UserID, now); err != nil {
			log.WithError(err).WithField("user", info.UserID).Warn("stop session on shutdown")
		}
	}
}

// #endregion helpers
