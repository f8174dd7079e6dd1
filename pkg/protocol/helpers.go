package protocol

import (
	"time"

	"github.com/posturekit/go-posture/pkg/adaptive"
	"github.com/posturekit/go-posture/pkg/landmark"
	"github.com/posturekit/go-posture/pkg/posture"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewFrameMessage creates a frame message carrying a detected landmark set
func NewFrameMessage(set *landmark.Set, source string, frameID uint64) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Detected:  set != nil,
		Landmarks: set,
		Source:    source,
		FrameID:   frameID,
	})
}

// NewNoDetectionMessage creates a frame message signalling nobody in view
func NewNoDetectionMessage(source string, frameID uint64) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Detected: false,
		Source:   source,
		FrameID:  frameID,
	})
}

// NewUpdateMessage creates an update message from a classification result
func NewUpdateMessage(at time.Time, update posture.Update) (*Message, error) {
	return NewMessage(TypeUpdate, UpdateData{
		At:     at.UnixMilli(),
		Update: update,
	})
}

// NewEventMessage creates an event message from a posture transition
func NewEventMessage(event posture.Event) (*Message, error) {
	return NewMessage(TypeEvent, EventData{Event: event})
}

// NewThresholdsMessage creates a threshold snapshot message
func NewThresholdsMessage(effective, base posture.Thresholds, adapt *adaptive.Thresholds) (*Message, error) {
	return NewMessage(TypeThresholds, ThresholdsData{
		Effective: effective,
		Base:      base,
		Adaptive:  adapt,
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetUpdateData extracts update data from a message
func (m *Message) GetUpdateData() (*UpdateData, error) {
	var data UpdateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetEventData extracts event data from a message
func (m *Message) GetEventData() (*EventData, error) {
	var data EventData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetThresholdsData extracts threshold data from a message
func (m *Message) GetThresholdsData() (*ThresholdsData, error) {
	var data ThresholdsData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
