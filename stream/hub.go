package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/PrincetonUniversity/flock"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// DefaultWriteTimeout bounds how long a frame may take to reach a viewer.
const DefaultWriteTimeout = 5 * time.Second

// A Hub broadcasts the snapshots of one run to every connected viewer.
type Hub struct {
	RunID string

	// WriteTimeout bounds every write; slower viewers are disconnected.
	WriteTimeout time.Duration

	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	last     []byte // last frame sent, replayed to new viewers
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewHub returns a hub for the given run. A nil logger means the default logger.
func NewHub(runID string, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		RunID:        runID,
		WriteTimeout: DefaultWriteTimeout,
		clients:      make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With("run", runID),
	}
}

// Len returns the number of connected viewers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(conn *websocket.Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	hello := h.last
	if hello == nil {
		var err error
		if hello, err = Encode(h.RunID, flock.Snapshot{}); err != nil {
			return err
		}
	}
	if err := h.write(conn, hello); err != nil {
		return err
	}
	h.clients[conn] = struct{}{}
	return nil
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

// write sends a binary frame. The caller holds h.mu.
func (h *Hub) write(conn *websocket.Conn, payload []byte) error {
	if h.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout)); err != nil {
			return err
		}
	}
	return conn.WriteMessage(websocket.BinaryMessage, payload)
}

// Broadcast sends a snapshot to every viewer. Viewers that cannot be
// written to are disconnected.
func (h *Hub) Broadcast(snap flock.Snapshot) {
	payload, err := Encode(h.RunID, snap)
	if err != nil {
		h.logger.Error("cannot broadcast", "tick", snap.Tick, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = payload
	for conn := range h.clients {
		if err := h.write(conn, payload); err != nil {
			h.logger.Warn("dropping viewer", "addr", conn.RemoteAddr(), "error", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Handler upgrades requests to websockets and registers them as viewers.
// Viewers receive the latest snapshot as soon as they connect.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error("websocket upgrade failed", "error", err)
			return
		}
		if err := h.add(conn); err != nil {
			h.logger.Warn("cannot greet viewer", "addr", conn.RemoteAddr(), "error", err)
			conn.Close()
			return
		}
		h.logger.Info("viewer connected", "addr", conn.RemoteAddr())
		defer h.remove(conn)

		// viewers do not send anything, reading only detects when they leave
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.logger.Info("viewer disconnected", "addr", conn.RemoteAddr())
				return
			}
		}
	}
}
