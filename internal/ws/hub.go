package ws

import (
	"encoding/json"
	"sync"
	"time"
)

// ReadingUpdate is pushed to subscribers whenever the usage job persists a
// new reading for their meter.
type ReadingUpdate struct {
	MeterNum  string    `json:"meter_num"`
	Units     string    `json:"units"`
	UsedUnits string    `json:"used_units"`
	At        time.Time `json:"at"`
}

// Hub fans reading updates out to the websocket clients subscribed to each
// meter number.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Register subscribes a client to a meter number
func (h *Hub) Register(meterNum string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[meterNum] == nil {
		h.clients[meterNum] = make(map[*Client]struct{})
	}
	h.clients[meterNum][client] = struct{}{}
}

// Unregister drops a client subscription and closes its send channel, which
// ends the client's write pump. Idempotent: both pumps unregister on exit and
// only the first call finds the client.
func (h *Hub) Unregister(meterNum string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.clients[meterNum]
	if clients == nil {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, meterNum)
	}
	close(client.send)
}

// BroadcastReading pushes an update to every subscriber of the meter. Slow
// clients are skipped rather than blocking the usage job.
func (h *Hub) BroadcastReading(update ReadingUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[update.MeterNum] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
