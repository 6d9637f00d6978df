package mirror

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 64
)

type session struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Hub fans availability events out to connected WebSocket clients. Each
// client has its own buffered queue and writer goroutine; a client whose
// queue is full is dropped. Update never blocks on a client.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

func NewHub(log *zap.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		log:      log,
		sessions: make(map[*session]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the connection until the client
// goes away. Inbound messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	s := h.add(conn)
	go h.writePump(s)

	defer h.remove(s)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) *session {
	s := &session{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) writePump(s *session) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("ws write failed, dropping client", zap.Error(err))
				h.remove(s)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(s)
				return
			}
		}
	}
}

// remove is idempotent; only the call that unregisters the session closes it.
func (h *Hub) remove(s *session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	delete(h.sessions, s)
	h.mu.Unlock()
	if ok {
		close(s.done)
		_ = s.conn.Close()
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) Update(_ context.Context, driverID int64, st State) error {
	msg, err := json.Marshal(Event{DriverID: driverID, State: st})
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.send <- msg:
		default:
			h.log.Warn("ws client too slow, dropping", zap.Int64("driver_id", driverID))
			h.remove(s)
		}
	}
	return nil
}
