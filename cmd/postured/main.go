// postured: desk posture monitoring daemon
// Ingests landmark frames over WebSocket, classifies posture against a
// calibrated baseline and serves the dashboard API and live stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/posturekit/go-posture/internal/config"
	"github.com/posturekit/go-posture/internal/log"
	"github.com/posturekit/go-posture/pkg/adaptive"
	"github.com/posturekit/go-posture/pkg/history"
	"github.com/posturekit/go-posture/pkg/ingest"
	"github.com/posturekit/go-posture/pkg/posture"
	"github.com/posturekit/go-posture/pkg/protocol"
	"github.com/posturekit/go-posture/pkg/sampling"
	"github.com/posturekit/go-posture/pkg/web"
)

var version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (or set POSTURED_* env vars)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postured: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	log.Init(cfg.LogLevel)

	fmt.Println()
	fmt.Println("🧍 postured v" + version)
	fmt.Println("   Desk posture monitoring daemon")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := posture.NewSession(cfg.Engine.Posture())
	if err != nil {
		log.Error("invalid engine configuration", "error", err)
		os.Exit(1)
	}
	mailbox := &sampling.Mailbox{}

	// History store. Without one the daemon still classifies, but drift
	// samples are not retained and adaptive thresholds stay off.
	var store *history.Store
	dbPath, err := cfg.History.DBPath()
	if err != nil {
		log.Error("resolve history path", "error", err)
		os.Exit(1)
	}
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			log.Error("create history directory", "error", err)
			os.Exit(1)
		}
		store, err = history.Open(dbPath)
		if err != nil {
			log.Error("open history store", "path", dbPath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
	} else {
		log.Warn("history persistence disabled, adaptive thresholds unavailable")
	}

	var loopOpts []sampling.LoopOption
	var recorder *history.Recorder
	if store != nil {
		recorder = history.NewRecorder(store, cfg.History.Retention())
		loopOpts = append(loopOpts, sampling.WithRecorder(recorder))
	}
	loop := sampling.NewLoop(session, mailbox, loopOpts...)

	var estimator *adaptive.Estimator
	if cfg.Adaptive.Enabled && store != nil {
		estimator = adaptive.NewEstimator(store)
		if t, ok, err := store.LoadThresholds(ctx); err != nil {
			log.Warn("load saved thresholds", "error", err)
		} else if ok {
			estimator.Seed(t)
			session.SetThresholds(t.Overlay(session.Config().BaseThresholds()))
			log.Info("restored adaptive thresholds",
				"calculated_at", t.CalculatedAt,
				"samples", t.SampleCount,
			)
		}
	}

	events := history.NewEventRing(64)

	detectors := ingest.NewHub()
	detectors.OnFrame(func(detectorID string, frame *protocol.FrameData) {
		mailbox.Publish(frame.Frame(time.Now()))
	})

	server := web.NewServer(cfg.ListenAddr, web.Deps{
		Session:   session,
		Loop:      loop,
		Mailbox:   mailbox,
		Estimator: estimator,
		Events:    events,
		History:   store,
		Ingest:    detectors,
	})

	loop.OnUpdate(server.HandleUpdate)
	loop.OnUpdate(func(u posture.Update) {
		if u.Event != nil {
			events.Add(*u.Event)
		}
	})

	// One apply path shared by the scheduler and manual recomputes: swap
	// the effective thresholds on the loop goroutine, persist, notify.
	applyThresholds := func(t adaptive.Thresholds) {
		loop.Apply(func() {
			session.SetThresholds(t.Overlay(session.Config().BaseThresholds()))
		})
		if store != nil {
			if err := store.SaveThresholds(ctx, t); err != nil {
				log.Warn("persist thresholds", "error", err)
			}
		}
		server.BroadcastThresholds()
		log.Info("adaptive thresholds applied",
			"head_forward_deg", t.HeadForwardDeg,
			"samples", t.SampleCount,
		)
	}
	server.OnThresholds = applyThresholds

	go loop.Run(ctx)

	recorderDone := make(chan struct{})
	if recorder != nil {
		go func() {
			recorder.Run(ctx)
			close(recorderDone)
		}()
	} else {
		close(recorderDone)
	}

	if estimator != nil {
		scheduler := adaptive.NewScheduler(estimator, applyThresholds)
		go scheduler.Run(ctx)
	}

	go func() {
		if err := server.Start(ctx); err != nil {
			log.Error("server stopped", "error", err)
			cancel()
		}
	}()

	log.Info("postured started",
		"addr", cfg.ListenAddr,
		"db", dbPath,
		"adaptive", estimator != nil,
	)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("shutting down")
	cancel()
	if err := server.Shutdown(); err != nil {
		log.Warn("server shutdown", "error", err)
	}

	// Let the recorder flush buffered samples before the store closes
	select {
	case <-recorderDone:
	case <-time.After(2 * time.Second):
		log.Warn("recorder flush timed out")
	}

	fmt.Println("👋 Goodbye!")
}

// loadConfig resolves the configuration: explicit flag, then the default
// file location, then environment-only defaults.
func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		def := filepath.Join(home, ".posture", "postured.yaml")
		if _, err := os.Stat(def); err == nil {
			return config.Load(def)
		}
	}
	return config.FromEnv()
}
