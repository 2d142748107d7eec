package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-remote/internal/session"
)

func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func subscribe(t *testing.T, conn *websocket.Conn, channels ...string) {
	t.Helper()
	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: channels},
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeResponse || msg.ID != "sub-1" {
		t.Fatalf("subscribe reply = %+v", msg)
	}
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocket_RelaysSubscribedEvents(t *testing.T) {
	srv := testServer(t, newFakeSessions(), nil)
	conn := dialWS(t, srv)
	subscribe(t, conn, string(session.EventCommandSent))

	srv.hub.Observe(session.Event{Type: session.EventDeviceConnected, DeviceID: "AA:BB", Success: true})
	srv.hub.Observe(session.Event{
		Type:     session.EventCommandSent,
		DeviceID: "AA:BB",
		Success:  true,
		Details:  map[string]any{"command": "menu"},
	})

	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != string(session.EventCommandSent) {
		t.Fatalf("event = %+v, want command.sent only", msg)
	}

	raw, _ := json.Marshal(msg.Payload)
	var ev session.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("payload not an event: %v", err)
	}
	if ev.DeviceID != "AA:BB" || ev.Details["command"] != "menu" {
		t.Errorf("payload = %+v", ev)
	}
}

func TestWebSocket_WildcardAndPing(t *testing.T) {
	srv := testServer(t, newFakeSessions(), nil)
	conn := dialWS(t, srv)
	subscribe(t, conn, WSChannelAll)

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("ping reply = %+v", msg)
	}

	srv.hub.Observe(session.Event{Type: session.EventDevicesScanned, Success: true})
	if msg := readWS(t, conn); msg.EventType != string(session.EventDevicesScanned) {
		t.Errorf("event = %+v", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "shout"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("unknown type reply = %+v, want error", msg)
	}
}

func TestWebSocket_UnregisterOnClose(t *testing.T) {
	srv := testServer(t, newFakeSessions(), nil)
	conn := dialWS(t, srv)
	waitForClients(t, srv.hub, 1)

	conn.Close()
	waitForClients(t, srv.hub, 0)

	// Broadcasting with no clients must not panic.
	srv.hub.Observe(session.Event{Type: session.EventAppLaunched})
}
