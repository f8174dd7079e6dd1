package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/posturekit/go-posture/pkg/adaptive"
	"github.com/posturekit/go-posture/pkg/hub"
	"github.com/posturekit/go-posture/pkg/posture"
	"github.com/posturekit/go-posture/pkg/protocol"
	"github.com/posturekit/go-posture/pkg/sampling"
)

// statusResponse is the GET /api/status payload
type statusResponse struct {
	State          posture.State `json:"state"`
	Calibrated     bool          `json:"calibrated"`
	SessionID      string        `json:"session_id"`
	UptimeSeconds  float64       `json:"uptime_seconds"`
	Ticks          uint64        `json:"ticks"`
	FramesDropped  uint64        `json:"frames_dropped"`
	Detectors      int           `json:"detectors"`
	Dashboards     int           `json:"dashboards"`
	HistorySamples int           `json:"history_samples"`
}

// handleStatus returns daemon and session status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := statusResponse{
		State:         s.deps.Session.State(),
		SessionID:     s.deps.Session.ID().String(),
		UptimeSeconds: time.Since(s.started).Seconds(),
		Ticks:         s.deps.Loop.Ticks(),
		Dashboards:    s.updates.ClientCount(),
	}
	_, resp.Calibrated = s.deps.Session.Baseline()

	if s.deps.Mailbox != nil {
		resp.FramesDropped = s.deps.Mailbox.Drops()
	}
	if s.deps.Ingest != nil {
		resp.Detectors = s.deps.Ingest.DetectorCount()
	}
	if s.deps.History != nil {
		if n, err := s.deps.History.CountSamples(c.Context()); err == nil {
			resp.HistorySamples = n
		}
	}

	return c.JSON(resp)
}

// handleMetrics returns the latest classification result, or null before
// the first frame has been classified
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	return c.JSON(s.latestUpdate())
}

// handleEvents returns recent posture events, newest first
func (s *Server) handleEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	events := []posture.Event{}
	if s.deps.Events != nil {
		events = s.deps.Events.Recent(limit)
	}

	return c.JSON(fiber.Map{
		"events": events,
		"count":  len(events),
	})
}

// handleThresholds returns the active threshold snapshot
func (s *Server) handleThresholds(c *fiber.Ctx) error {
	return c.JSON(s.thresholdsData())
}

// handleRecompute recomputes adaptive thresholds if they are stale and
// applies the result through the daemon's apply path
func (s *Server) handleRecompute(c *fiber.Ctx) error {
	if s.deps.Estimator == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "adaptive thresholds disabled",
		})
	}

	t, ok, err := s.deps.Estimator.RecomputeIfStale(c.Context(), time.Now())
	if ok && s.OnThresholds != nil {
		s.OnThresholds(t)
	}

	resp := fiber.Map{"thresholds": s.thresholdsData()}
	if err != nil {
		if !errors.Is(err, adaptive.ErrInsufficientHistory) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		resp["reason"] = "insufficient history"
	}

	return c.JSON(resp)
}

// handleCalibrate captures a baseline from the next detector frame
func (s *Server) handleCalibrate(c *fiber.Ctx) error {
	baseline, err := s.deps.Loop.Calibrate(c.Context())
	if err != nil {
		return calibrationError(c, err)
	}

	s.logger.Info("calibrated",
		"head_forward_deg", baseline.HeadForwardDeg,
		"shoulder_tilt_deg", baseline.ShoulderTiltDeg,
	)

	return c.JSON(fiber.Map{
		"baseline": baseline,
		"state":    s.deps.Session.State(),
	})
}

// calibrationError maps calibration failures onto HTTP statuses: bad
// frames and timeouts are client-visible 422s, a concurrent attempt is a
// 409, anything else is a 500.
func calibrationError(c *fiber.Ctx, err error) error {
	reason := "internal"
	status := fiber.StatusInternalServerError

	var calErr *posture.CalibrationError
	switch {
	case errors.As(err, &calErr):
		status = fiber.StatusUnprocessableEntity
		if len(calErr.Missing) > 0 {
			reason = "insufficient_landmarks"
		} else {
			reason = "low_confidence"
		}
	case errors.Is(err, posture.ErrInsufficientLandmarks):
		status = fiber.StatusUnprocessableEntity
		reason = "insufficient_landmarks"
	case errors.Is(err, sampling.ErrCalibrationTimeout):
		status = fiber.StatusUnprocessableEntity
		reason = "timeout"
	case errors.Is(err, sampling.ErrCalibrationPending):
		status = fiber.StatusConflict
		reason = "pending"
	}

	return c.Status(status).JSON(fiber.Map{
		"error":  err.Error(),
		"reason": reason,
	})
}

// configResponse mirrors the daemon's engine configuration keys
type configResponse struct {
	SampleIntervalMS     int64              `json:"sample_interval_ms"`
	WarningMS            int64              `json:"warning_ms"`
	SlouchMS             int64              `json:"slouch_ms"`
	CalibrationTimeoutMS int64              `json:"calibration_timeout_ms"`
	MinConfidence        float64            `json:"min_confidence"`
	Thresholds           posture.Thresholds `json:"thresholds"`
}

// handleConfig returns the engine configuration in effect
func (s *Server) handleConfig(c *fiber.Ctx) error {
	cfg := s.deps.Session.Config()
	return c.JSON(configResponse{
		SampleIntervalMS:     cfg.SampleInterval.Milliseconds(),
		WarningMS:            cfg.WarningAfter.Milliseconds(),
		SlouchMS:             cfg.SlouchAfter.Milliseconds(),
		CalibrationTimeoutMS: cfg.CalibrationTimeout.Milliseconds(),
		MinConfidence:        cfg.MinConfidence,
		Thresholds:           cfg.BaseThresholds(),
	})
}

// handlePostureWS streams classification updates to a dashboard client
func (s *Server) handlePostureWS(conn *websocket.Conn) {
	// Send a snapshot before joining the hub so the dashboard renders
	// immediately instead of waiting for the next tick
	if latest := s.latestUpdate(); latest != nil {
		if msg, err := protocol.NewUpdateMessage(time.UnixMilli(latest.At), latest.Update); err == nil {
			if raw, err := msg.Bytes(); err == nil {
				conn.WriteMessage(websocket.TextMessage, raw)
			}
		}
	}

	d := s.thresholdsData()
	if msg, err := protocol.NewThresholdsMessage(d.Effective, d.Base, d.Adaptive); err == nil {
		if raw, err := msg.Bytes(); err == nil {
			conn.WriteMessage(websocket.TextMessage, raw)
		}
	}

	hub.NewClient(s.updates, conn).Run()
}
