package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event is the envelope pushed to chat clients.
type Event struct {
	Type   string      `json:"type"`
	TeamID string      `json:"teamId"`
	Data   interface{} `json:"data"`
}

// Observer is notified when the number of connected clients changes.
type Observer interface {
	WebsocketConnected(delta int)
}

// Hub tracks websocket clients per team and fans events out to them.
type Hub struct {
	mu       sync.RWMutex
	teams    map[string]map[*Client]struct{}
	observer Observer
	logger   *zap.Logger
}

// NewHub creates a Hub. observer may be nil.
func NewHub(observer Observer, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		teams:    make(map[string]map[*Client]struct{}),
		observer: observer,
		logger:   logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	clients, ok := h.teams[c.teamID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.teams[c.teamID] = clients
	}
	clients[c] = struct{}{}
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.WebsocketConnected(1)
	}
	h.logger.Debug("chat client registered", zap.String("team_id", c.teamID), zap.String("user_id", c.userID))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	clients, ok := h.teams[c.teamID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.teams, c.teamID)
	}
	close(c.send)
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.WebsocketConnected(-1)
	}
	h.logger.Debug("chat client unregistered", zap.String("team_id", c.teamID), zap.String("user_id", c.userID))
}

// Broadcast sends an event to every client connected to teamID. Clients whose
// send buffer is full are disconnected.
func (h *Hub) Broadcast(teamID, eventType string, data interface{}) {
	payload, err := json.Marshal(Event{Type: eventType, TeamID: teamID, Data: data})
	if err != nil {
		h.logger.Error("failed to encode chat event", zap.String("team_id", teamID), zap.Error(err))
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.teams[teamID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow chat client", zap.String("team_id", teamID), zap.String("user_id", c.userID))
		h.unregister(c)
	}
}

// ClientCount returns the number of clients connected to teamID.
func (h *Hub) ClientCount(teamID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.teams[teamID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Client
	for _, clients := range h.teams {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.unregister(c)
	}
}
