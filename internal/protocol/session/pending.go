package session

import (
	"sort"
	"sync"
	"time"
)

// PendingCompletion tracks one deferred response awaiting its deadline.
type PendingCompletion struct {
	ID         uint64
	Kind       string
	MessageID  uint64
	AcceptedAt time.Time
	DeadlineAt time.Time

	timer *time.Timer
	run   func()
}

// CompletionSet stores in-flight completions by scheduler id.
type CompletionSet struct {
	mu     sync.RWMutex
	items  map[uint64]*PendingCompletion
	closed bool
}

func NewCompletionSet() *CompletionSet {
	return &CompletionSet{
		items: make(map[uint64]*PendingCompletion),
	}
}

// Arm registers item and starts its timer under the set lock. It reports false
// once CancelAll has run; the item is then dropped and fire never runs.
func (c *CompletionSet) Arm(item *PendingCompletion, delay time.Duration, fire func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	item.timer = time.AfterFunc(delay, fire)
	c.items[item.ID] = item
	return true
}

// Take removes and returns the completion if it is still pending.
func (c *CompletionSet) Take(id uint64) (*PendingCompletion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if ok {
		delete(c.items, id)
	}
	return item, ok
}

// CancelAll stops every timer, empties the set, and returns how many were dropped.
// Later Arm calls are refused.
func (c *CompletionSet) CancelAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	n := 0
	for id, item := range c.items {
		if item.timer != nil {
			item.timer.Stop()
		}
		delete(c.items, id)
		n++
	}
	return n
}

func (c *CompletionSet) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// List returns a snapshot ordered by deadline, then id.
func (c *CompletionSet) List() []PendingCompletion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]PendingCompletion, 0, len(c.items))
	for _, item := range c.items {
		cp := *item
		cp.timer = nil
		cp.run = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeadlineAt.Equal(out[j].DeadlineAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DeadlineAt.Before(out[j].DeadlineAt)
	})
	return out
}
