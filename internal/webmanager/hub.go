package webmanager

import (
	"sort"
	"sync"

	"github.com/danmuck/webmanager/internal/observability"
)

// Member is a live connection the hub can broadcast to.
type Member interface {
	ID() string
	TrySend(msg []byte) error
	Close() error
}

// Hub tracks live sessions. It is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	members map[string]Member
}

func NewHub() *Hub {
	return &Hub{members: make(map[string]Member)}
}

func (h *Hub) Add(m Member) {
	h.mu.Lock()
	h.members[m.ID()] = m
	n := len(h.members)
	h.mu.Unlock()
	observability.SetLiveSessions(n)
}

func (h *Hub) Remove(id string) {
	h.mu.Lock()
	delete(h.members, id)
	n := len(h.members)
	h.mu.Unlock()
	observability.SetLiveSessions(n)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// IDs returns the live session ids in sorted order.
func (h *Hub) IDs() []string {
	h.mu.RLock()
	out := make([]string, 0, len(h.members))
	for id := range h.members {
		out = append(out, id)
	}
	h.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Broadcast offers msg to every member without blocking. Members with a full
// outbound queue miss the frame.
func (h *Hub) Broadcast(msg []byte) (delivered, dropped int) {
	for _, m := range h.snapshot() {
		if err := m.TrySend(msg); err != nil {
			dropped++
			observability.RecordBroadcast(false)
			continue
		}
		delivered++
		observability.RecordBroadcast(true)
	}
	return delivered, dropped
}

// CloseAll closes every member. Members remove themselves as their runs end.
func (h *Hub) CloseAll() {
	for _, m := range h.snapshot() {
		_ = m.Close()
	}
}

func (h *Hub) snapshot() []Member {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Member, 0, len(h.members))
	for _, m := range h.members {
		out = append(out, m)
	}
	return out
}
