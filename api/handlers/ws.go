package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/paissahouse/paissadb/api/metrics"
	"github.com/paissahouse/paissadb/queue"
)

const (
	// Time allowed to write a message to the peer.
	wsWriteWait = 10 * time.Second
	// Application-level keepalive; the plugin expects a ping message
	// rather than a protocol ping frame.
	wsPingInterval = 90 * time.Second
	// Maximum message size allowed from peer. Viewers never send
	// anything meaningful.
	wsMaxMessageSize = 512
	// Per-viewer send buffer; messages beyond this are dropped rather
	// than stalling the fanout.
	wsSendBuffer = 64
	// Anonymous viewers are culled after a day so dead dashboards do
	// not pile up.
	wsAnonymousTTL = 24 * time.Hour
)

var wsPingMessage = []byte(`{"type": "ping"}`)

// Fanout relays every reconciler broadcast to all connected websocket
// viewers.
type Fanout struct {
	log      *slog.Logger
	queue    *queue.Queue
	upgrader websocket.Upgrader

	mu      sync.Mutex
	viewers map[*viewer]struct{}
	closed  bool
}

type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

// NewFanout creates a fanout reading broadcasts from the given queue.
func NewFanout(log *slog.Logger, q *queue.Queue) *Fanout {
	return &Fanout{
		log:   log,
		queue: q,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		viewers: make(map[*viewer]struct{}),
	}
}

// Run subscribes to the broadcast channel and multicasts every message
// until ctx is cancelled, then closes every viewer with 1012 so clients
// know to reconnect.
func (f *Fanout) Run(ctx context.Context) {
	sub := f.queue.Subscribe(ctx)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			f.shutdown()
			return
		case msg, ok := <-ch:
			if !ok {
				f.shutdown()
				return
			}
			f.multicast([]byte(msg.Payload))
		}
	}
}

// HandleWS upgrades the connection and registers the viewer. Token
// validation happens after the upgrade so the plugin receives a close
// frame it can interpret instead of an opaque HTTP error.
func (f *Fanout) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("jwt")

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		return
	}

	if token != "" {
		if _, err := VerifyToken(token); err != nil {
			closeConn(conn, websocket.ClosePolicyViolation, "invalid session token")
			return
		}
	}

	v := &viewer{conn: conn, send: make(chan []byte, wsSendBuffer)}
	if !f.register(v) {
		closeConn(conn, websocket.CloseServiceRestart, "shutting down")
		return
	}

	var expire clockwork.Timer
	if token == "" {
		expire = clock.AfterFunc(wsAnonymousTTL, func() {
			closeConn(conn, websocket.CloseNormalClosure, "anonymous session expired")
		})
	}

	go v.writePump()
	v.readPump(f, expire)
}

func (f *Fanout) register(v *viewer) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.viewers[v] = struct{}{}
	metrics.WSConnections.Set(float64(len(f.viewers)))
	return true
}

func (f *Fanout) unregister(v *viewer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.viewers[v]; ok {
		delete(f.viewers, v)
		close(v.send)
		metrics.WSConnections.Set(float64(len(f.viewers)))
	}
}

// multicast enqueues one broadcast payload to every viewer. A viewer
// whose buffer is full loses the message; the dashboard use case
// tolerates gaps but not a stalled fanout.
func (f *Fanout) multicast(payload []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		f.log.Warn("dropping malformed broadcast payload", "error", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for v := range f.viewers {
		select {
		case v.send <- payload:
			metrics.WSMessagesSentTotal.WithLabelValues(head.Type).Inc()
		default:
			metrics.WSMessagesDroppedTotal.Inc()
		}
	}
}

func (f *Fanout) shutdown() {
	f.mu.Lock()
	f.closed = true
	viewers := make([]*viewer, 0, len(f.viewers))
	for v := range f.viewers {
		viewers = append(viewers, v)
	}
	f.mu.Unlock()

	for _, v := range viewers {
		closeConn(v.conn, websocket.CloseServiceRestart, "shutting down")
	}
}

// closeConn sends a close frame with the given code and tears the
// connection down; the viewer's read pump unwinds from the closed conn.
func closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
	_ = conn.Close()
}

// readPump drains the connection until it errors, then unregisters the
// viewer.
func (v *viewer) readPump(f *Fanout, expire clockwork.Timer) {
	defer func() {
		if expire != nil {
			expire.Stop()
		}
		f.unregister(v)
		v.conn.Close()
	}()
	v.conn.SetReadLimit(wsMaxMessageSize)
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pumps queued broadcasts and periodic pings to the peer.
func (v *viewer) writePump() {
	ticker := clock.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-v.send:
			_ = v.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// the fanout unregistered this viewer
				_ = v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.Chan():
			_ = v.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, wsPingMessage); err != nil {
				return
			}
		}
	}
}
