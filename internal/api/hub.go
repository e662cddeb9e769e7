package api

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/talgya/bountyhunter/internal/engine"
)

// Hub fans step snapshots out to stream subscribers. Slow subscribers miss
// messages rather than stall the simulation.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan []byte)}
}

// Subscribe registers a subscriber with the given buffer size.
func (h *Hub) Subscribe(buffer int) (int, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan []byte, buffer)
	h.subs[h.nextID] = ch
	return h.nextID, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast encodes s once and offers it to every subscriber.
func (h *Hub) Broadcast(s engine.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		slog.Error("encode snapshot", "error", err)
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- data:
		default:
		}
	}
}
