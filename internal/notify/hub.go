package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Subscription receives the events of one room until closed.
type Subscription struct {
	C    <-chan Event
	room string
	ch   chan Event
	hub  *Hub
	once sync.Once
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub is the in-process room registry behind the SSE endpoint. Delivery
// never blocks; a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscription]struct{}
	buffer int
	logger *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{rooms: make(map[string]map[*Subscription]struct{}), buffer: buffer, logger: logger}
}

// Subscribe joins userID's room.
func (h *Hub) Subscribe(userID string) *Subscription {
	ch := make(chan Event, h.buffer)
	s := &Subscription{C: ch, room: Room(userID), ch: ch, hub: h}
	h.mu.Lock()
	members, ok := h.rooms[s.room]
	if !ok {
		members = make(map[*Subscription]struct{})
		h.rooms[s.room] = members
	}
	members[s] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("notify.hub.join", "room", s.room)
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[s.room]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, s.room)
		}
	}
	close(s.ch)
	h.logger.Debug("notify.hub.leave", "room", s.room)
}

// Notify delivers ev to every subscriber in the owner's room.
func (h *Hub) Notify(_ context.Context, ev Event) {
	room := Room(ev.UserID)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[room] {
		select {
		case s.ch <- ev:
		default:
			h.logger.Warn("notify.hub.dropped", "room", room, "event", ev.Name, "job_id", ev.Data.ID)
		}
	}
}

// Subscribers reports how many subscribers are in userID's room.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[Room(userID)])
}
