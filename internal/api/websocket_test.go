package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/hvcrate-core/internal/auth"
	"github.com/nerrad567/hvcrate-core/internal/bridges/hv"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/config"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

// subscribedClient registers a client with the given channels and record
// filter, bypassing the wire protocol.
func subscribedClient(hub *Hub, channels []string, records ...string) *WSClient {
	c := newWSClient(hub, nil)
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
	for _, rec := range records {
		c.records[rec] = struct{}{}
	}
	hub.Register(c)
	return c
}

func receive(t *testing.T, c *WSClient) (WSMessage, bool) {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg, true
	case <-time.After(100 * time.Millisecond):
		return WSMessage{}, false
	}
}

func TestHub_PublishStateFiltering(t *testing.T) {
	tests := []struct {
		name     string
		channels []string
		records  []string
		record   string
		want     bool
	}{
		{"subscribed, no filter", []string{ChannelParameterState}, nil, "S00:C00:VMON", true},
		{"record filter matches", []string{ChannelParameterState}, []string{"S00:C00:VMON"}, "S00:C00:VMON", true},
		{"record filter excludes", []string{ChannelParameterState}, []string{"S00:C01:VMON"}, "S00:C00:VMON", false},
		{"other channel", []string{ChannelParameterWritten}, nil, "S00:C00:VMON", false},
		{"not subscribed", nil, nil, "S00:C00:VMON", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := testHub(t)
			c := subscribedClient(hub, tt.channels, tt.records...)

			hub.PublishState(hv.StateMessage{Crate: "crate1", Record: tt.record, Formatted: "0 V"})

			msg, got := receive(t, c)
			if got != tt.want {
				t.Fatalf("received = %v, want %v", got, tt.want)
			}
			if !got {
				return
			}
			if msg.Type != WSTypeEvent || msg.EventType != ChannelParameterState {
				t.Errorf("message = %+v", msg)
			}
			if payload, ok := msg.Payload.(map[string]any); !ok || payload["record"] != tt.record {
				t.Errorf("payload = %v", msg.Payload)
			}
		})
	}
}

func TestHub_SlowClientDropsEvents(t *testing.T) {
	hub := testHub(t)
	c := subscribedClient(hub, []string{ChannelParameterState})

	for i := 0; i < wsSendBufferSize+3; i++ {
		hub.PublishState(hv.StateMessage{Record: "S00:C00:VMON"})
	}
	if hub.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", hub.Dropped())
	}
	if len(c.send) != wsSendBufferSize {
		t.Errorf("queued = %d, want %d", len(c.send), wsSendBufferSize)
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := testHub(t)
	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	c := subscribedClient(hub, []string{ChannelParameterState})
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}

	// A second unregister must not close the queue twice, and late
	// events are discarded.
	hub.Unregister(c)
	hub.PublishState(hv.StateMessage{Record: "S00:C00:VMON"})
	if !c.trySend([]byte("late")) {
		t.Error("trySend() after close reported a full queue")
	}
}

func TestHandleSubscription(t *testing.T) {
	hub := testHub(t)
	c := newWSClient(hub, nil)

	c.handleMessage([]byte(`{"type":"subscribe","id":"s1","payload":{"channels":["parameter.state_changed","parameter.written"],"records":["S00:C00:V0SET"]}}`))
	if msg, _ := receive(t, c); msg.Type != WSTypeResponse || msg.ID != "s1" {
		t.Fatalf("subscribe reply = %+v", msg)
	}
	if !c.wants(ChannelParameterWritten, "S00:C00:V0SET") || c.wants(ChannelParameterWritten, "S00:C01:V0SET") {
		t.Error("record filter not applied")
	}

	c.handleMessage([]byte(`{"type":"unsubscribe","id":"u1","payload":{"channels":["parameter.written"],"records":["S00:C00:V0SET"]}}`))
	if msg, _ := receive(t, c); msg.Type != WSTypeResponse || msg.ID != "u1" {
		t.Fatalf("unsubscribe reply = %+v", msg)
	}
	if c.wants(ChannelParameterWritten, "S00:C00:V0SET") || !c.wants(ChannelParameterState, "S00:C01:V0SET") {
		t.Error("unsubscribe not applied")
	}

	errorCases := []string{
		`{"type":"subscribe","id":"e1","payload":{"channels":["crate.exploded"]}}`,
		`{"type":"subscribe","id":"e2"}`,
		`{"type":"subscribe","id":"e3","payload":"nope"}`,
		`{"type":"bogus","id":"e4"}`,
		`not json`,
	}
	for _, raw := range errorCases {
		c.handleMessage([]byte(raw))
		if msg, ok := receive(t, c); !ok || msg.Type != WSTypeError {
			t.Errorf("%s: reply = %+v", raw, msg)
		}
	}
	if c.wants(ChannelParameterWritten, "S00:C00:V0SET") {
		t.Error("rejected subscribe changed the subscriptions")
	}
}

// ─── WebSocket Connection Tests ────────────────────────────────────

// startWSServer starts a listening server with auth enabled and an
// injected hub.
func startWSServer(t *testing.T) (*Server, *Hub) {
	t.Helper()

	hub := testHub(t)
	srv := testServer(t, func(d *Deps) {
		d.Security.JWT.Secret = testSecret
		d.ExternalHub = hub
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv, hub
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestWebSocket_RequiresToken(t *testing.T) {
	srv, _ := startWSServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/api/v1/ws", nil)
	if err == nil {
		conn.Close()
		t.Fatal("Dial() without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	srv, hub := startWSServer(t)

	token, err := auth.GenerateToken("panel", auth.RoleViewer, testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/api/v1/ws?token="+token, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("ping reply = %+v", msg)
	}

	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "s1",
		Payload: WSSubscribePayload{Channels: []string{ChannelParameterState}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeResponse || msg.ID != "s1" {
		t.Fatalf("subscribe reply = %+v", msg)
	}

	if hub.ClientCount() != 1 {
		t.Errorf("client count = %d, want 1", hub.ClientCount())
	}

	hub.PublishState(hv.StateMessage{Crate: "crate1", Record: "S00:C00:V0SET", Formatted: "1200 V"})

	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelParameterState {
		t.Fatalf("event = %+v", msg)
	}
	if payload, ok := msg.Payload.(map[string]any); !ok || payload["formatted"] != "1200 V" {
		t.Errorf("payload = %v", msg.Payload)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("reply to bad JSON = %+v", msg)
	}
}

func TestWrite_BroadcastsOnWrittenChannel(t *testing.T) {
	srv := testServer(t, nil)
	c := subscribedClient(srv.hub, []string{ChannelParameterWritten}, "S00:C00:V0SET")

	if w := do(t, srv, http.MethodPut, "/api/v1/parameters/S00:C00:V0SET/value", `{"value":900}`, ""); w.Code != http.StatusOK {
		t.Fatalf("write status = %d: %s", w.Code, w.Body.String())
	}
	// Filtered out by the record filter.
	do(t, srv, http.MethodPut, "/api/v1/parameters/S00:C01:V0SET/value", `{"value":900}`, "")

	msg, ok := receive(t, c)
	if !ok || msg.EventType != ChannelParameterWritten {
		t.Fatalf("event = %+v", msg)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["record"] != "S00:C00:V0SET" || payload["action"] != "write" || payload["value"] != "900" {
		t.Errorf("payload = %v", payload)
	}
	if _, more := receive(t, c); more {
		t.Error("event for filtered record was delivered")
	}
}
