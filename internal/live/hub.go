// Package live pushes task list snapshots to websocket clients.
package live

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-list/internal/model"
)

const sendBuffer = 16

type Message struct {
	Type  string       `json:"type"`
	Tasks []model.Task `json:"tasks"`
	Stats model.Stats  `json:"stats"`
}

// Hub fans out store snapshots. Observe never blocks: a client whose buffer
// is full misses that frame and catches up on the next one.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}
	last    []byte
	closed  bool
	wg      sync.WaitGroup
}

// NewHub accepts websocket upgrades only from allowedOrigin. An empty
// allowedOrigin lets any origin connect.
func NewHub(logger *zap.Logger, allowedOrigin string) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
		clients: make(map[*Client]struct{}),
	}
}

// Observe has the store observer signature.
func (h *Hub) Observe(tasks []model.Task) {
	frame, err := json.Marshal(Message{Type: "tasks", Tasks: tasks, Stats: model.StatsOf(tasks)})
	if err != nil {
		h.logger.Error("failed to encode snapshot", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = frame
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("client too slow, frame dropped", zap.String("remote", c.remote))
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams snapshots until the peer leaves.
// The latest snapshot is sent right after connecting.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		remote: r.RemoteAddr,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.wg.Add(2)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", zap.String("remote", c.remote))

	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client and waits for their pumps to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	h.wg.Wait()
}
