package websocket

import (
	"sync"
)

// Hub tracks the connections held by this instance, keyed by handle id,
// and the group rooms each connection has joined.
type Hub struct {
	mu sync.RWMutex

	// clients maps handle id to client
	clients map[string]*Client

	// groups maps group id to the clients subscribed to it
	groups map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[*Client]struct{}),
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

// Unregister removes a client with all of its subscriptions and closes its
// send queue. Calling it twice is harmless.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for groupID := range client.groupSet() {
		if subscribers, ok := h.groups[groupID]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.groups, groupID)
			}
		}
	}
	if h.clients[client.ID] == client {
		delete(h.clients, client.ID)
	}
	client.closeSend()
}

// Subscribe joins a client to a group room
func (h *Hub) Subscribe(client *Client, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.groups[groupID]; !ok {
		h.groups[groupID] = make(map[*Client]struct{})
	}
	h.groups[groupID][client] = struct{}{}
	client.join(groupID)
}

// Unsubscribe removes a client from a group room
func (h *Hub) Unsubscribe(client *Client, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.groups[groupID]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.groups, groupID)
		}
	}
	client.leave(groupID)
}

// SendToClient queues frame on the connection with the given handle. It
// reports false when the handle is not held here.
func (h *Hub) SendToClient(handleID string, frame []byte) bool {
	h.mu.RLock()
	client, ok := h.clients[handleID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	client.SendMessage(frame)
	return true
}

// BroadcastGroup queues frame on every local connection in the group room
// except those of exceptUserID.
func (h *Hub) BroadcastGroup(groupID, exceptUserID string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.groups[groupID] {
		if c.UserID == exceptUserID {
			continue
		}
		c.SendMessage(frame)
		sent++
	}
	return sent
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GroupSubscriberCount returns the number of local subscribers of a group
func (h *Hub) GroupSubscriberCount(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupID])
}
