package oracle

import (
	"sync"

	"github.com/vietddude/pricewatch/internal/core/domain"
)

// subscriberBuffer is the per-subscriber queue; slow subscribers miss intermediate states.
const subscriberBuffer = 4

// Hub fans committed states out to subscribers.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan domain.OracleState
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan domain.OracleState)}
}

// Subscribe registers a listener. The returned cancel func closes the channel.
func (h *Hub) Subscribe() (<-chan domain.OracleState, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan domain.OracleState, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers a copy of s to every subscriber without blocking.
func (h *Hub) Publish(s domain.OracleState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- s.Clone():
		default:
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
