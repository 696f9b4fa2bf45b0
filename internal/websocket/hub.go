package websocket

import (
	"context"
	"modelhub/internal/logger"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "modelhub_websocket_connections",
		Help: "Number of open websocket connections",
	})

	droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modelhub_websocket_dropped_events_total",
		Help: "Events dropped because a client send buffer was full",
	})
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans activity events out to every live connection of a user.
type Hub struct {
	clients    map[int64]map[*Client]bool
	mu         sync.RWMutex
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		}
	}
}

// Attach hands client to the running hub. It returns false once the hub has
// stopped, and the caller then owns closing the connection.
func (h *Hub) Attach(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.UserID]; !ok {
		h.clients[client.UserID] = make(map[*Client]bool)
	}
	h.clients[client.UserID][client] = true
	connectionsGauge.Inc()
	h.log.Debug().Int64("user_id", client.UserID).Msg("websocket client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if userClients, ok := h.clients[client.UserID]; ok {
		if _, ok := userClients[client]; ok {
			delete(userClients, client)
			close(client.send)
			connectionsGauge.Dec()
			if len(userClients) == 0 {
				delete(h.clients, client.UserID)
			}
			h.log.Debug().Int64("user_id", client.UserID).Msg("websocket client unregistered")
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, userClients := range h.clients {
		for client := range userClients {
			close(client.send)
			connectionsGauge.Dec()
		}
		delete(h.clients, userID)
	}
}

// ClientCount returns the number of live connections of userID.
func (h *Hub) ClientCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) PublishEvent(userID int64, eventData []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if userClients, ok := h.clients[userID]; ok {
		for client := range userClients {
			select {
			case client.send <- eventData:
			default:
				droppedEvents.Inc()
				h.log.Warn().Int64("user_id", userID).Msg("websocket send buffer is full, dropping event")
			}
		}
	}
}
