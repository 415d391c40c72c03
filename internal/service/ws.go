package service

import (
	"encoding/json"
	"sync"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/messaging"
	"github.com/ajbunielteam/SysGranTES/internal/model"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

type WSClient struct {
	Conn        *websocket.Conn
	Participant model.Participant
	Send        chan []byte
}

func NewWSClient(conn *websocket.Conn, p model.Participant) *WSClient {
	return &WSClient{Conn: conn, Participant: p, Send: make(chan []byte, 64)}
}

// WSHub fans events out to connected views.
type WSHub struct {
	clients    map[*WSClient]bool
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan []byte
	mu         sync.RWMutex
	done       chan struct{}
	log        *zap.Logger
}

func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		log:        logger.Named("ws"),
	}
}

func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("connected", zap.Stringer("participant", client.Participant), zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("disconnected", zap.Stringer("participant", client.Participant), zap.Int("total", total))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			return
		}
	}
}

func (h *WSHub) Shutdown() {
	close(h.done)
}

func (h *WSHub) Register(client *WSClient) {
	h.register <- client
}

func (h *WSHub) Unregister(client *WSClient) {
	h.unregister <- client
}

func (h *WSHub) Broadcast(event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.broadcast <- data
}

// SendTo delivers event to every connection of p. Any admin connection
// matches an admin participant.
func (h *WSHub) SendTo(p model.Participant, event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !sameViewer(client.Participant, p) {
			continue
		}
		select {
		case client.Send <- data:
		default:
		}
	}
}

func sameViewer(a, b model.Participant) bool {
	if a.Role != b.Role {
		return false
	}
	return a.IsAdmin() || a.ID == b.ID
}

// Badges returns the badge sink for one connection. Each view polls for
// itself, so its badge goes to that view only.
func (h *WSHub) Badges(client *WSClient) messaging.BadgeSink {
	return clientBadges{hub: h, client: client}
}

type clientBadges struct {
	hub    *WSHub
	client *WSClient
}

func (b clientBadges) PublishBadge(_ model.Participant, badge model.Badge) {
	b.hub.Reply(b.client, model.NewWSEvent(model.EventBadge, badge))
}

func (h *WSHub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Reply sends event to one connection if it is still registered.
func (h *WSHub) Reply(client *WSClient, event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}
