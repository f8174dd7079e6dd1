// Package web provides the daemon's HTTP API and live posture stream
package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/posturekit/go-posture/pkg/adaptive"
	"github.com/posturekit/go-posture/pkg/history"
	"github.com/posturekit/go-posture/pkg/hub"
	"github.com/posturekit/go-posture/pkg/ingest"
	"github.com/posturekit/go-posture/pkg/posture"
	"github.com/posturekit/go-posture/pkg/protocol"
	"github.com/posturekit/go-posture/pkg/sampling"
)

// Deps bundles the daemon components the API surfaces. Session, Loop and
// Mailbox are required; the rest degrade gracefully when nil.
type Deps struct {
	Session   *posture.Session
	Loop      *sampling.Loop
	Mailbox   *sampling.Mailbox
	Estimator *adaptive.Estimator
	Events    *history.EventRing
	History   *history.Store
	Ingest    *ingest.Hub
}

// Server is the daemon's HTTP and WebSocket front end
type Server struct {
	app  *fiber.App
	addr string

	deps Deps

	// Latest classification result; nil until the first frame arrives
	latest   *protocol.UpdateData
	latestMu sync.RWMutex

	// Fan-out hub for the dashboard posture stream
	updates *hub.Hub

	// OnThresholds is invoked when a manual recompute produces
	// thresholds. The daemon points it at the same apply path the
	// scheduler uses.
	OnThresholds func(adaptive.Thresholds)

	started time.Time
	logger  *slog.Logger
}

// NewServer creates the API server and mounts all routes
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		addr:    addr,
		deps:    deps,
		updates: hub.New("posture"),
		started: time.Now(),
		logger:  slog.Default().With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "postured",
		DisableStartupMessage: true,
	})

	// CORS for dashboard development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/metrics", s.handleMetrics)
	api.Get("/events", s.handleEvents)
	api.Get("/thresholds", s.handleThresholds)
	api.Post("/thresholds/recompute", s.handleRecompute)
	api.Post("/calibrate", s.handleCalibrate)
	api.Get("/config", s.handleConfig)

	// Detector ingest shares the same listener
	if deps.Ingest != nil {
		deps.Ingest.RegisterRoutes(app)
		deps.Ingest.RegisterAPIRoutes(api)
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Dashboard stream
	app.Get("/ws/posture", websocket.New(s.handlePostureWS))

	s.app = app
	return s
}

// Start runs the broadcast hub and listens on the configured address.
// It blocks until Shutdown is called or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.started = time.Now()
	go s.updates.Run(ctx)

	s.logger.Info("listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// HandleUpdate records the latest classification and pushes it to every
// connected dashboard. Wire it to the sampling loop's update fan-out.
func (s *Server) HandleUpdate(update posture.Update) {
	now := time.Now()
	data := &protocol.UpdateData{At: now.UnixMilli(), Update: update}

	s.latestMu.Lock()
	s.latest = data
	s.latestMu.Unlock()

	if msg, err := protocol.NewUpdateMessage(now, update); err == nil {
		if raw, err := msg.Bytes(); err == nil {
			s.updates.Broadcast(raw)
		}
	}

	// Transition events additionally go out as their own message so
	// dashboards can alert without diffing consecutive updates
	if update.Event != nil {
		if msg, err := protocol.NewEventMessage(*update.Event); err == nil {
			if raw, err := msg.Bytes(); err == nil {
				s.updates.Broadcast(raw)
			}
		}
	}
}

// BroadcastThresholds pushes the current threshold snapshot to every
// connected dashboard. The daemon calls it after applying an adaptive
// recompute or a recalibration.
func (s *Server) BroadcastThresholds() {
	d := s.thresholdsData()
	msg, err := protocol.NewThresholdsMessage(d.Effective, d.Base, d.Adaptive)
	if err != nil {
		return
	}
	if raw, err := msg.Bytes(); err == nil {
		s.updates.Broadcast(raw)
	}
}

// DashboardCount returns the number of connected dashboard clients
func (s *Server) DashboardCount() int {
	return s.updates.ClientCount()
}

func (s *Server) latestUpdate() *protocol.UpdateData {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest
}

func (s *Server) thresholdsData() protocol.ThresholdsData {
	data := protocol.ThresholdsData{
		Effective: s.deps.Session.EffectiveThresholds(),
		Base:      s.deps.Session.Config().BaseThresholds(),
	}
	if s.deps.Estimator != nil {
		if t, ok := s.deps.Estimator.Current(); ok {
			data.Adaptive = &t
		}
	}
	return data
}
