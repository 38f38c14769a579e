package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/logger"
)

const (
	maxClients   = 100
	sendBuffer   = 16
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// streamMessage is one frame on /ws.
type streamMessage struct {
	ID           string           `json:"id"`
	Type         events.Type      `json:"type"`
	Timestamp    time.Time        `json:"timestamp"`
	RAMPercent   float64          `json:"ram_percent"`
	TopProcesses []events.Process `json:"top_processes"`
	Since        *time.Time       `json:"since,omitempty"`
	ElapsedSec   float64          `json:"elapsed_seconds"`
}

func newStreamMessage(ev events.Event) streamMessage {
	msg := streamMessage{
		ID:           ev.ID().String(),
		Type:         ev.Type(),
		Timestamp:    ev.Timestamp(),
		RAMPercent:   ev.RAMPercent(),
		TopProcesses: ev.TopProcesses(),
	}
	if msg.TopProcesses == nil {
		msg.TopProcesses = []events.Process{}
	}
	if esc, ok := ev.Escalation(); ok {
		if !esc.Since.IsZero() {
			since := esc.Since
			msg.Since = &since
		}
		msg.ElapsedSec = esc.Elapsed.Seconds()
	}
	return msg
}

// client owns one connection. Only its writer goroutine writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans stream messages out to WebSocket clients. A client that can't
// keep up loses messages rather than slowing the others.
type hub struct {
	log      logger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	stop    chan struct{}
	closed  bool
}

func newHub(log logger.Logger) *hub {
	return &hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
		stop:    make(chan struct{}),
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) serve(w http.ResponseWriter, r *http.Request) {
	if h.count() >= maxClients {
		http.Error(w, "Maximum clients reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	readDone := make(chan struct{})
	go h.read(c, readDone)
	h.write(c, readDone)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = conn.Close()
}

// read drains the connection so pongs and closes are processed.
func (h *hub) read(c *client, done chan<- struct{}) {
	defer close(done)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket read: %v", err)
			}
			return
		}
	}
}

func (h *hub) write(c *client, readDone <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-h.stop:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (h *hub) broadcast(msg streamMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encoding stream message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("websocket client too slow, dropped %s", msg.Type)
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.stop)
}
