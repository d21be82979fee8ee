package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"timeledger/internal/domain/events"
)

// Subscription scopes what a client receives. Types narrows by event type
// when non-empty.
type Subscription struct {
	TenantID   string
	UserID     string
	Privileged bool
	Types      map[string]bool
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action string   `json:"action"`
	Types  []string `json:"types"`
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) SetTypes(client *Client, types []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(types) == 0 {
		client.Subscription.Types = nil
		return
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	client.Subscription.Types = set
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish fans evt out to every matching client. Slow clients drop messages.
func (h *Hub) Publish(_ context.Context, evt events.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("realtime event encode failed", "type", evt.Type, "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, evt) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			slog.Warn("realtime message dropped", "clientId", client.ID, "type", evt.Type)
		}
	}
}

func match(sub Subscription, evt events.Event) bool {
	if sub.TenantID != evt.TenantID {
		return false
	}
	if len(sub.Types) > 0 && !sub.Types[evt.Type] {
		return false
	}
	if sub.Privileged {
		return true
	}
	return evt.Resource.UserID == "" || evt.Resource.UserID == sub.UserID
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
