package control

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beaconsentry/engine/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestBroadcast_DeliversNotificationToConnectedClient(t *testing.T) {
	hub := newTestHub()
	conn, closeAll := dialHub(t, hub)
	defer closeAll()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	hub.Broadcast(domain.Notification{MonitorType: domain.MonitorGeoFence, MAC: "aabbccddeeff", UUID: "u1", ViolationTS: ts})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	assert.Contains(t, string(payload), `"mac_address":"aabbccddeeff"`)
	assert.Contains(t, string(payload), `"monitor_type":"GEO_FENCE"`)
}

func TestBroadcast_NoClientsIsANoop(t *testing.T) {
	hub := newTestHub()
	assert.NotPanics(t, func() {
		hub.Broadcast(domain.Notification{MonitorType: domain.MonitorPanic, MAC: "aabbccddeeff"})
	})
}

func TestHandleWebSocket_DisconnectRemovesClient(t *testing.T) {
	hub := newTestHub()
	conn, closeAll := dialHub(t, hub)
	defer closeAll()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
