package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/albertcande/docx-anonymizer/internal/config"
)

func testWebSocketConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Enabled:        true,
		Path:           "/ws",
		MaxMessageSize: 512,
		Events: config.EventToggles{
			BroadcastProcessing:  true,
			BroadcastDetections:  true,
			BroadcastConnections: true,
		},
	}
}

func TestBroadcastRespectsEventToggles(t *testing.T) {
	cfg := testWebSocketConfig()
	cfg.Events.BroadcastDetections = false
	hub := NewHub(cfg, zap.NewNop())

	hub.BroadcastEvent(Event{Type: EventTypeDetection, Timestamp: time.Now()})
	assert.Empty(t, hub.broadcast)

	hub.BroadcastEvent(Event{Type: EventTypeProcessing, Timestamp: time.Now()})
	assert.Len(t, hub.broadcast, 1)
}

func TestBroadcastDeliversToClients(t *testing.T) {
	hub := NewHub(testWebSocketConfig(), zap.NewNop())

	client := &Client{ID: "client_test", Send: make(chan Event, 1)}
	hub.clients[client] = true

	event := Event{
		Type:      EventTypeProcessing,
		Timestamp: time.Now(),
		RequestID: "req_1",
		Data:      ProcessingEvent{FileName: "report.docx", Status: "completed"},
	}
	hub.broadcastEvent(event)

	select {
	case got := <-client.Send:
		assert.Equal(t, event.RequestID, got.RequestID)
	default:
		t.Fatal("expected event on client channel")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub(testWebSocketConfig(), zap.NewNop())

	// Unbuffered channel with no reader simulates a stalled client.
	client := &Client{ID: "client_stalled", Send: make(chan Event)}
	hub.clients[client] = true

	hub.broadcastEvent(Event{Type: EventTypeProcessing, Timestamp: time.Now()})

	assert.NotContains(t, hub.clients, client)
	_, open := <-client.Send
	require.False(t, open)
}

func TestRegisterAndUnregister(t *testing.T) {
	hub := NewHub(testWebSocketConfig(), zap.NewNop())
	client := &Client{ID: "client_1", Send: make(chan Event, 1)}

	hub.registerClient(client)
	assert.Contains(t, hub.clients, client)
	// Registration announces the connection to other clients.
	assert.Len(t, hub.broadcast, 1)

	hub.unregisterClient(client)
	assert.NotContains(t, hub.clients, client)
}
