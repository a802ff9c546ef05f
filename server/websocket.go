package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/philtim/timearchitect/events"
	"github.com/philtim/timearchitect/logger"
	"github.com/philtim/timearchitect/session"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // No origin header = same-origin request
		}
		return strings.Contains(origin, r.Host)
	},
}

// Message is what clients receive: a tick snapshot or an event.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hub fans ticks and events out to every connected WebSocket client.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Message
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.Mutex
}

// NewHub creates a hub forwarding every event published on bus.
func NewHub(bus *events.Bus) *Hub {
	h := &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Message, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
	bus.SubscribeAll(func(e events.Event) {
		h.send(Message{Type: "event", Data: e})
	})
	go h.run()
	return h
}

// BroadcastTick sends a tick snapshot to all clients. It is the tick
// driver's callback.
func (h *Hub) BroadcastTick(snap session.Snapshot) {
	h.send(Message{Type: "tick", Data: snap})
}

// send never blocks the tick path; a full queue drops the message.
func (h *Hub) send(m Message) {
	select {
	case h.broadcast <- m:
	case <-h.done:
	default:
		logger.Debugf("WebSocket queue full, dropping %s message", m.Type)
	}
}

// Close disconnects all clients and stops the hub.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			logger.Debugf("WebSocket client connected (Total: %d)", len(h.clients))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if err := client.Close(); err != nil {
					logger.Debugf("WebSocket close error: %v", err)
				}
				logger.Debugf("WebSocket client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := client.WriteJSON(message); err != nil {
					logger.Warnf("WebSocket error: %v", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// HandleConnection upgrades the request and keeps the connection open until
// the client goes away.
func (h *Hub) HandleConnection(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}
	select {
	case h.register <- ws:
	case <-h.done:
		ws.Close()
		return
	}

	defer func() {
		select {
		case h.unregister <- ws:
		case <-h.done:
		}
	}()

	if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Debugf("Failed to set initial read deadline: %v", err)
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	done := make(chan struct{})
	defer close(done)
	go h.ping(ws, ticker.C, done)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// ping keeps ws alive until the connection handler returns or the hub
// closes.
func (h *Hub) ping(ws *websocket.Conn, tick <-chan time.Time, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-h.done:
			return
		case <-tick:
			h.mu.Lock()
			if !h.clients[ws] {
				h.mu.Unlock()
				return
			}
			// hold the mutex so pings never interleave with broadcasts
			err := ws.WriteMessage(websocket.PingMessage, nil)
			h.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// ClientCount returns the number of connected WebSocket clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
