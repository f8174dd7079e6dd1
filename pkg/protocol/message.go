// Package protocol defines the WebSocket message types exchanged between
// landmark detectors, the posture daemon and dashboard clients. Detectors
// speak it on the ingest side; dashboards speak it on the broadcast side.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/posturekit/go-posture/pkg/adaptive"
	"github.com/posturekit/go-posture/pkg/landmark"
	"github.com/posturekit/go-posture/pkg/posture"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Detector → daemon messages
	TypeFrame MessageType = "frame" // Landmark frame or explicit no-detection

	// Daemon → dashboard messages
	TypeUpdate     MessageType = "update"     // Classified posture update
	TypeEvent      MessageType = "event"      // Sustained-slouch transition event
	TypeThresholds MessageType = "thresholds" // Active threshold snapshot

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Detector → Daemon Message Types
// =============================================================================

// FrameData carries one detector frame. Detected false means the detector
// ran but found nobody in view; Landmarks is nil in that case. A frame with
// Detected true must carry all five upper-body landmarks to be classified.
type FrameData struct {
	Detected  bool          `json:"detected"`
	Landmarks *landmark.Set `json:"landmarks,omitempty"`
	Source    string        `json:"source,omitempty"`   // Detector identifier
	FrameID   uint64        `json:"frame_id,omitempty"` // Detector-local sequence number
}

// Frame converts the payload into the engine's frame representation,
// stamping it with the given capture time.
func (f *FrameData) Frame(at time.Time) landmark.Frame {
	fr := landmark.Frame{At: at}
	if f.Detected {
		fr.Set = f.Landmarks
	}
	return fr
}

// =============================================================================
// Daemon → Dashboard Message Types
// =============================================================================

// UpdateData is the per-tick classification result pushed to dashboards.
// It wraps the engine update with the server-side tick timestamp.
type UpdateData struct {
	At     int64          `json:"at"` // Unix milliseconds
	Update posture.Update `json:"update"`
}

// EventData carries a single posture transition event.
type EventData struct {
	Event posture.Event `json:"event"`
}

// ThresholdsData is the threshold snapshot pushed after calibration or an
// adaptive recompute. Adaptive is nil until enough history has accumulated.
type ThresholdsData struct {
	Effective posture.Thresholds   `json:"effective"`
	Base      posture.Thresholds   `json:"base"`
	Adaptive  *adaptive.Thresholds `json:"adaptive,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
