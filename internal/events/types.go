package events

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType identifies the kind of event being broadcast
type EventType string

const (
	EventTypeProcessing EventType = "processing"
	EventTypeDetection  EventType = "detection"
	EventTypeConnection EventType = "connection"
)

// Event is one message broadcast to connected clients
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
	Data      any       `json:"data"`
}

// ProcessingEvent reports the lifecycle of one document
type ProcessingEvent struct {
	FileName   string `json:"fileName"`
	SizeBytes  int64  `json:"sizeBytes"`
	Status     string `json:"status"` // started, completed, failed
	DurationMS int64  `json:"durationMs,omitempty"`
}

// DetectionEvent summarizes replacement counts for one document.
// It carries counts only, never matched content.
type DetectionEvent struct {
	FileName          string         `json:"fileName"`
	KeywordsReplaced  int            `json:"keywordsReplaced"`
	FinancialReplaced int            `json:"financialReplaced"`
	PIIReplaced       map[string]int `json:"piiReplaced"`
	TotalReplacements int            `json:"totalReplacements"`
}

// ConnectionEvent reports client connect/disconnect
type ConnectionEvent struct {
	Action   string `json:"action"`
	ClientID string `json:"clientId"`
}

// Client is one connected WebSocket peer
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan Event
}
