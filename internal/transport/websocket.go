package transport

import (
	applog "beatmap/internal/log"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// DefaultReplayLimit bounds the event messages kept for late-joining
// clients. Summary and series messages are always kept.
const DefaultReplayLimit = 4096

// WebSocketTransport broadcasts JSON messages to every client connected on
// /ws. Clients that connect after messages were sent first receive the
// retained history, so a viewer opened after the analysis still sees it.
// Replay sends summaries and series first, then the most recent events.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	listener  net.Listener
	server    *http.Server
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	clientsMu sync.Mutex // Guards clients, pinned and recent.
	clients   map[*websocket.Conn]bool
	pinned    []any
	recent    []any
	limit     int
}

// NewWebSocketTransport listens on addr and starts serving. Use port 0 to
// pick a free port and Addr to find it.
func NewWebSocketTransport(addr string) (*WebSocketTransport, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Viewers are served from arbitrary local origins
			},
		},
		listener:  listener,
		broadcast: make(chan any, 256),
		done:      make(chan struct{}),
		clients:   make(map[*websocket.Conn]bool),
		limit:     DefaultReplayLimit,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	wst.server = &http.Server{Handler: mux}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		applog.Infof("Transport: WebSocket server listening on %s", listener.Addr())
		if err := wst.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("Transport: WebSocket server error: %v", err)
		}
	}()
	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()

	return wst, nil
}

// Addr returns the listening address.
func (wst *WebSocketTransport) Addr() net.Addr {
	return wst.listener.Addr()
}

// handleWebSocket upgrades HTTP connections and replays the history.
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("Transport: WebSocket upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	for _, data := range wst.history() {
		if err := conn.WriteJSON(data); err != nil {
			wst.clientsMu.Unlock()
			applog.Warnf("Transport: WebSocket replay failed: %v", err)
			conn.Close()
			return
		}
	}
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("Transport: WebSocket client connected, total: %d", total)

	// Reads only serve to notice the disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		wst.clientsMu.Lock()
		_, known := wst.clients[conn]
		delete(wst.clients, conn)
		total := len(wst.clients)
		wst.clientsMu.Unlock()
		conn.Close()
		if known {
			applog.Infof("Transport: WebSocket client disconnected, total: %d", total)
		}
	}()
}

// handleBroadcasts records and sends messages to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			wst.record(data)
			for client := range wst.clients {
				if err := client.WriteJSON(data); err != nil {
					applog.Warnf("Transport: WebSocket send failed: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// record keeps data for replay. Callers hold clientsMu.
func (wst *WebSocketTransport) record(data any) {
	if isHeader(data) {
		wst.pinned = append(wst.pinned, data)
		return
	}
	wst.recent = append(wst.recent, data)
	if len(wst.recent) > wst.limit {
		wst.recent = wst.recent[len(wst.recent)-wst.limit:]
	}
}

// history returns the messages replayed to a new client. Callers hold
// clientsMu.
func (wst *WebSocketTransport) history() []any {
	return append(append([]any(nil), wst.pinned...), wst.recent...)
}

// isHeader reports whether data describes a whole pass rather than a
// single event.
func isHeader(data any) bool {
	switch v := data.(type) {
	case Series, *Series:
		return true
	case map[string]any:
		return v["type"] == TypeSummary
	}
	return false
}

// Send queues data for broadcast. It blocks while the queue is full.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}

	select {
	case wst.broadcast <- data:
		return nil
	case <-wst.done:
		return ErrClosed
	}
}

// Close shuts down the server and disconnects all clients.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("Transport: Closing WebSocket server")
		close(wst.done)
		err = wst.server.Close()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		wst.wg.Wait()
	})
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
