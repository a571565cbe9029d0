package monitor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/securedocflow/securedoc-proxy/internal/config"
	"github.com/securedocflow/securedoc-proxy/internal/logger"
	"github.com/securedocflow/securedoc-proxy/internal/privacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestHub(t *testing.T, cfg config.MonitorConfig) (*Hub, *websocket.Conn) {
	t.Helper()

	hub := NewHub(cfg, logger.NewNop())
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return hub, conn
}

func TestBroadcastReachesConnectedClient(t *testing.T) {
	hub, conn := dialTestHub(t, config.MonitorConfig{
		Enabled:             true,
		BroadcastDetections: true,
	})

	// Registration races the broadcast; give the hub a beat.
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(Event{
		Type:      EventTypePHIDetection,
		Timestamp: time.Now(),
		RequestID: "req-1",
		Data: PHIDetectionEvent{Summary: privacy.Summary{
			TotalMatches: 2,
			ByCategory:   map[privacy.Category]int{privacy.CategoryEmail: 2},
		}},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventTypePHIDetection, got.Type)
	assert.Equal(t, "req-1", got.RequestID)
}

func TestBroadcastHonorsEventGating(t *testing.T) {
	hub, conn := dialTestHub(t, config.MonitorConfig{
		Enabled:             true,
		BroadcastDetections: false,
		BroadcastWebhooks:   true,
	})

	time.Sleep(50 * time.Millisecond)

	// Filtered out by configuration.
	hub.Broadcast(Event{Type: EventTypePHIDetection, RequestID: "req-filtered"})
	// Enabled; this one must arrive first.
	hub.Broadcast(Event{Type: EventTypeWebhook, RequestID: "req-delivered"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventTypeWebhook, got.Type)
	assert.Equal(t, "req-delivered", got.RequestID)
}

func TestBroadcastDisabledHubIsNoop(t *testing.T) {
	hub := NewHub(config.MonitorConfig{Enabled: false}, logger.NewNop())

	// No Run loop, no clients; must neither block nor panic.
	for i := 0; i < 500; i++ {
		hub.Broadcast(Event{Type: EventTypePHIDetection})
	}
}

func TestBroadcastNilHubIsSafe(t *testing.T) {
	var hub *Hub
	hub.Broadcast(Event{Type: EventTypeWebhook})
}
