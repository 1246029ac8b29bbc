// Package live pushes dashboard figures to websocket clients whenever a
// record collection changes.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mamadbah2/argan/internal/domain/models"
)

const writeWait = 5 * time.Second

// Source supplies the figures sent to clients.
type Source interface {
	DashboardSummary() models.DashboardSummary
	LowStockAlerts() []models.StockItem
}

// Event is the message written to every client.
type Event struct {
	Type       string                  `json:"type"`
	Collection models.Collection       `json:"collection,omitempty"`
	Dashboard  models.DashboardSummary `json:"dashboard"`
	Alerts     []models.StockItem      `json:"alerts"`
}

// Hub fans change events out to the connected clients.
type Hub struct {
	source    Source
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]struct{}
	broadcast chan []byte
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewHub creates a hub. Run must be started for events to be delivered.
func NewHub(source Source, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan []byte, 256),
		logger:    logger,
	}
}

// Run delivers queued events until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.broadcast:
			for _, conn := range h.snapshotClients() {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					h.logger.Debug("dropping live client", zap.Error(err))
					h.remove(conn)
				}
			}
		}
	}
}

// Notify queues a change event for collection. Events are dropped when the
// queue is full.
func (h *Hub) Notify(collection models.Collection) {
	msg, err := json.Marshal(h.event("change", collection))
	if err != nil {
		h.logger.Error("encode live event", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("live event queue full, dropping event", zap.String("collection", string(collection)))
	}
}

// ServeWS upgrades the request, sends the current figures and keeps the
// connection registered until the client goes away.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// The server read timeout survives the hijack; clients stay connected indefinitely.
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(h.event("snapshot", "")); err != nil {
		_ = conn.Close()
		return
	}

	h.add(conn)
	h.logger.Info("live client connected", zap.Int("clients", h.Count()))
	defer func() {
		h.remove(conn)
		h.logger.Info("live client disconnected", zap.Int("clients", h.Count()))
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("live client read failed", zap.Error(err))
			}
			return
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) event(kind string, collection models.Collection) Event {
	return Event{
		Type:       kind,
		Collection: collection,
		Dashboard:  h.source.DashboardSummary(),
		Alerts:     h.source.LowStockAlerts(),
	}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		_ = conn.Close()
	}
	h.mu.Unlock()
}

func (h *Hub) snapshotClients() []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	return conns
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}
