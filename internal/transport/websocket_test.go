package transport

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startServer(t *testing.T) *WebSocketTransport {
	t.Helper()

	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	t.Cleanup(func() { wst.Close() })
	return wst
}

func dial(t *testing.T, wst *WebSocketTransport) *websocket.Conn {
	t.Helper()

	u := url.URL{Scheme: "ws", Host: wst.Addr().String(), Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSeries(t *testing.T, conn *websocket.Conn) Series {
	t.Helper()

	var s Series
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&s); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return s
}

func TestWebSocketReplaysHistory(t *testing.T) {
	wst := startServer(t)

	if err := wst.Send(NewSeries("flux", 0.1, []float64{1})); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := wst.Send(NewSeries("onsets", 0.1, []float64{0, 2})); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conn := dial(t, wst)
	first, second := readSeries(t, conn), readSeries(t, conn)
	if first.Name != "flux" || second.Name != "onsets" {
		t.Errorf("received %q then %q, want flux then onsets", first.Name, second.Name)
	}
	if len(second.Values) != 2 || second.Values[1] != 2 {
		t.Errorf("onsets values = %v", second.Values)
	}
}

func TestWebSocketReplayKeepsHeader(t *testing.T) {
	wst := startServer(t)
	wst.limit = 2

	messages := []any{
		map[string]any{"type": TypeSummary, "frames": 3},
		NewSeries("flux", 0.1, []float64{1, 2, 3}),
		NewSeries("onsets", 0.1, []float64{0, 2, 0}),
	}
	for i := range 5 {
		messages = append(messages, map[string]any{"type": TypeEvent, "index": i})
	}
	for _, m := range messages {
		if err := wst.Send(m); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	// Wait until every message is recorded so the client sees only replay.
	deadline := time.Now().Add(2 * time.Second)
	for {
		wst.clientsMu.Lock()
		recorded := len(wst.pinned) + len(wst.recent)
		events := len(wst.recent)
		wst.clientsMu.Unlock()
		if recorded == 5 && events == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("history holds %d messages (%d events), want 5 (2 events)", recorded, events)
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn := dial(t, wst)
	var got []map[string]any
	for range 5 {
		var m map[string]any
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		got = append(got, m)
	}

	if got[0]["type"] != TypeSummary || got[1]["name"] != "flux" || got[2]["name"] != "onsets" {
		t.Errorf("header = %v", got[:3])
	}
	// JSON numbers decode as float64.
	if got[3]["index"] != 3.0 || got[4]["index"] != 4.0 {
		t.Errorf("events = %v, want the last two", got[3:])
	}
}

func TestWebSocketBroadcastsLive(t *testing.T) {
	wst := startServer(t)
	conn := dial(t, wst)

	// The client may register after the send; replay covers that case.
	if err := wst.Send(NewSeries("onsets", 0.5, []float64{3})); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if s := readSeries(t, conn); s.Name != "onsets" || s.TimePerFrame != 0.5 {
		t.Errorf("received %+v", s)
	}
}

func TestWebSocketClosed(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := wst.Send("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestWebSocketBadAddress(t *testing.T) {
	if _, err := NewWebSocketTransport("256.0.0.1:bad"); err == nil {
		t.Error("expected listen error")
	}
}
