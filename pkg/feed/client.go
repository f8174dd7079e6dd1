package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/posturekit/go-posture/pkg/landmark"
	"github.com/posturekit/go-posture/pkg/protocol"
)

// Source produces successive landmark sets for the feeder to publish.
// A nil set means the detector saw nobody this frame.
type Source interface {
	Next() *landmark.Set
}

// Client streams landmark frames from a Source to the daemon's ingest
// endpoint. It reconnects automatically when the connection drops.
type Client struct {
	cfg    Config
	source Source
	logger *slog.Logger

	mu        sync.Mutex
	ws        *websocket.Conn
	connected bool

	frameID        atomic.Uint64
	framesSent     atomic.Uint64
	reconnectCount atomic.Uint64
}

// NewClient creates a feeder client for the given source.
func NewClient(cfg Config, source Source) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("feed: invalid config: %w", err)
	}
	if source == nil {
		return nil, errors.New("feed: source is required")
	}

	return &Client{
		cfg:    cfg,
		source: source,
		logger: slog.Default().With("component", "feed"),
	}, nil
}

// Run connects and streams frames until ctx is cancelled. Dropped
// connections are retried with the configured interval; only consecutive
// connect failures count towards MaxReconnectAttempts.
func (c *Client) Run(ctx context.Context) error {
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ws, err := c.connect(ctx)
		if err == nil {
			attempts = 0
			err = c.stream(ctx, ws)
			c.disconnect(ws)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("stream interrupted, reconnecting", "error", err)
		} else {
			attempts++
			if c.cfg.MaxReconnectAttempts > 0 && attempts >= c.cfg.MaxReconnectAttempts {
				return fmt.Errorf("feed: max reconnect attempts (%d) reached: %w",
					c.cfg.MaxReconnectAttempts, err)
			}
			c.logger.Warn("connect failed, retrying",
				"error", err,
				"attempt", attempts,
				"retry_in", c.cfg.ReconnectInterval,
			)
		}

		c.reconnectCount.Add(1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	ws, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	c.ws = ws
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("connected", "url", c.cfg.URL)
	return ws, nil
}

func (c *Client) disconnect(ws *websocket.Conn) {
	ws.Close()
	c.mu.Lock()
	c.ws = nil
	c.connected = false
	c.mu.Unlock()
}

// stream publishes one frame per interval until the connection breaks.
func (c *Client) stream(ctx context.Context, ws *websocket.Conn) error {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	// The daemon only talks back in response to pings, but reading is
	// what notices a dropped connection between writes.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return fmt.Errorf("feed: connection lost: %w", err)
		case <-ticker.C:
			if err := c.publishNext(ws); err != nil {
				return err
			}
		}
	}
}

func (c *Client) publishNext(ws *websocket.Conn) error {
	set := c.source.Next()
	id := c.frameID.Add(1)

	var (
		msg *protocol.Message
		err error
	)
	if set != nil {
		msg, err = protocol.NewFrameMessage(set, c.cfg.Source, id)
	} else {
		msg, err = protocol.NewNoDetectionMessage(c.cfg.Source, id)
	}
	if err != nil {
		return fmt.Errorf("feed: encode frame: %w", err)
	}

	data, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("feed: encode frame: %w", err)
	}

	ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("feed: write frame: %w", err)
	}

	c.framesSent.Add(1)
	return nil
}

// IsConnected returns true while a connection to the daemon is up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Stats returns client statistics.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		Connected:      c.IsConnected(),
		FramesSent:     c.framesSent.Load(),
		ReconnectCount: c.reconnectCount.Load(),
	}
}

// ClientStats contains client statistics.
type ClientStats struct {
	Connected      bool   `json:"connected"`
	FramesSent     uint64 `json:"frames_sent"`
	ReconnectCount uint64 `json:"reconnect_count"`
}
