// Package ingest provides the WebSocket hub for landmark detector connections
package ingest

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/posturekit/go-posture/pkg/protocol"
)

// DetectorConnection represents a connected landmark detector
type DetectorConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send sends a message to the detector
func (d *DetectorConnection) Send(msg *protocol.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	return d.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages WebSocket connections from landmark detectors. Incoming
// frames are handed to the registered callback on the connection's read
// goroutine; the callback must not block.
type Hub struct {
	mu        sync.RWMutex
	detectors map[string]*DetectorConnection

	onFrame func(detectorID string, frame *protocol.FrameData)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64

	logger *slog.Logger
}

// NewHub creates a new detector hub
func NewHub() *Hub {
	return &Hub{
		detectors: make(map[string]*DetectorConnection),
		logger:    slog.Default().With("component", "ingest"),
	}
}

// OnFrame sets the callback for incoming landmark frames
func (h *Hub) OnFrame(callback func(detectorID string, frame *protocol.FrameData)) {
	h.mu.Lock()
	h.onFrame = callback
	h.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Detector connection endpoint
	app.Get("/ws/landmarks", websocket.New(h.handleDetector))
	app.Get("/ws/landmarks/:id", websocket.New(h.handleDetector))
}

// handleDetector handles a detector WebSocket connection
func (h *Hub) handleDetector(c *websocket.Conn) {
	// Get detector ID from path or generate one
	detectorID := c.Params("id")
	if detectorID == "" {
		detectorID = uuid.NewString()
	}

	detector := &DetectorConnection{
		ID:        detectorID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	h.mu.Lock()
	h.detectors[detectorID] = detector
	count := len(h.detectors)
	h.mu.Unlock()

	h.logger.Info("detector connected", "detector", detectorID, "total", count)

	defer func() {
		h.mu.Lock()
		delete(h.detectors, detectorID)
		count := len(h.detectors)
		h.mu.Unlock()

		h.logger.Info("detector disconnected", "detector", detectorID, "total", count)
	}()

	// Read loop
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("detector read error", "detector", detectorID, "error", err)
			return
		}

		detector.mu.Lock()
		detector.LastSeen = time.Now()
		detector.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(detectorID, data)
	}
}

// handleMessage processes an incoming message from a detector
func (h *Hub) handleMessage(detectorID string, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Debug("parse error", "detector", detectorID, "error", err)
		return
	}

	h.mu.RLock()
	frameCb := h.onFrame
	h.mu.RUnlock()

	switch msg.Type {
	case protocol.TypeFrame:
		h.framesReceived.Add(1)
		if frameCb != nil {
			frame, err := msg.GetFrameData()
			if err == nil {
				frameCb(detectorID, frame)
			}
		}

	case protocol.TypePing:
		// Respond with pong
		h.SendPong(detectorID, msg.Timestamp)
	}
}

// SendPong sends a pong response to a detector
func (h *Hub) SendPong(detectorID string, pingTS int64) error {
	msg, err := protocol.NewPongMessage("", pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return h.sendToDetector(detectorID, msg)
}

// sendToDetector sends a message to a specific detector
func (h *Hub) sendToDetector(detectorID string, msg *protocol.Message) error {
	h.mu.RLock()
	detector, ok := h.detectors[detectorID]
	h.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "detector not connected")
	}

	h.messagesSent.Add(1)
	return detector.Send(msg)
}

// Broadcast sends a message to all connected detectors
func (h *Hub) Broadcast(msg *protocol.Message) {
	h.mu.RLock()
	detectors := make([]*DetectorConnection, 0, len(h.detectors))
	for _, d := range h.detectors {
		detectors = append(detectors, d)
	}
	h.mu.RUnlock()

	for _, detector := range detectors {
		h.messagesSent.Add(1)
		if err := detector.Send(msg); err != nil {
			h.logger.Debug("broadcast error", "detector", detector.ID, "error", err)
		}
	}
}

// GetDetector returns a detector connection by ID
func (h *Hub) GetDetector(detectorID string) *DetectorConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.detectors[detectorID]
}

// DetectorCount returns the number of connected detectors
func (h *Hub) DetectorCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.detectors)
}

// Stats contains hub statistics
type Stats struct {
	DetectorCount    int    `json:"detector_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		DetectorCount:    h.DetectorCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
	}
}

// DetectorInfo contains info about a connected detector
type DetectorInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetDetectorInfos returns info about all connected detectors
func (h *Hub) GetDetectorInfos() []DetectorInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]DetectorInfo, 0, len(h.detectors))
	for _, d := range h.detectors {
		d.mu.Lock()
		infos = append(infos, DetectorInfo{
			ID:        d.ID,
			Connected: d.Connected,
			LastSeen:  d.LastSeen,
		})
		d.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for detector visibility
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	detectors := api.Group("/detectors")

	// List connected detectors
	detectors.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"detectors": h.GetDetectorInfos(),
			"count":     h.DetectorCount(),
		})
	})

	// Get hub stats
	detectors.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}
