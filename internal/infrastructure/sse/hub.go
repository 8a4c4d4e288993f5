package sse

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/haggle-hub/haggle-hub/internal/domain/notification"
)

// Hub manages SSE clients and fans out published events to the clients subscribed to a channel.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*notification.SSEClient
	logger  zerolog.Logger
}

var _ notification.SSEHub = (*Hub)(nil)

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*notification.SSEClient),
		logger:  logger.With().Str("component", "sse_hub").Logger(),
	}
}

func (h *Hub) Register(client *notification.SSEClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ClientID] = client
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		c.Close()
		delete(h.clients, clientID)
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish delivers the event to every client subscribed to channel. Slow clients miss it.
func (h *Hub) Publish(_ context.Context, channel, event string, payload json.RawMessage) error {
	msg := notification.NewSSEMessage(channel, event, payload)

	h.mu.RLock()
	var targets []string
	for id, c := range h.clients {
		if c.Subscribed(channel) {
			targets = append(targets, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range targets {
		err := h.SendToClient(id, msg)
		if errors.Is(err, notification.ErrChannelFull) {
			h.logger.Warn().
				Str("clientId", id).
				Str("channel", channel).
				Str("event", event).
				Msg("dropped event for slow client")
		}
	}
	return nil
}

// SendToClient delivers a message to one client.
func (h *Hub) SendToClient(clientID string, message *notification.SSEMessage) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c := h.clients[clientID]
	if c == nil {
		return notification.ErrClientNotFound
	}
	if !trySend(c, message) {
		return notification.ErrChannelFull
	}
	return nil
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}

func trySend(c *notification.SSEClient, msg *notification.SSEMessage) bool {
	select {
	case c.MessageChan <- msg:
		return true
	default:
		return false
	}
}
