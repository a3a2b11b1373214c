package webmanager

import (
	"errors"
	"sync"
	"testing"

	"github.com/danmuck/webmanager/internal/testutil/testlog"
)

type fakeMember struct {
	id   string
	full bool

	mu     sync.Mutex
	got    [][]byte
	closed bool
}

func (m *fakeMember) ID() string { return m.id }

func (m *fakeMember) TrySend(msg []byte) error {
	if m.full {
		return errors.New("full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, msg)
	return nil
}

func (m *fakeMember) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *fakeMember) received() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.got...)
}

func TestHubBroadcastSkipsFullMembers(t *testing.T) {
	testlog.Start(t)
	h := NewHub()
	a := &fakeMember{id: "a"}
	b := &fakeMember{id: "b", full: true}
	c := &fakeMember{id: "c"}
	h.Add(a)
	h.Add(b)
	h.Add(c)

	delivered, dropped := h.Broadcast([]byte("x"))
	if delivered != 2 || dropped != 1 {
		t.Fatalf("delivered=%d dropped=%d", delivered, dropped)
	}
	if len(a.received()) != 1 || len(c.received()) != 1 {
		t.Fatalf("members missed broadcast")
	}

	h.Remove("a")
	h.Broadcast([]byte("y"))
	if len(a.received()) != 1 {
		t.Fatalf("removed member still receiving")
	}
	if ids := h.IDs(); len(ids) != 2 || ids[0] != "b" || ids[1] != "c" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestHubCloseAll(t *testing.T) {
	testlog.Start(t)
	h := NewHub()
	a := &fakeMember{id: "a"}
	b := &fakeMember{id: "b"}
	h.Add(a)
	h.Add(b)
	h.CloseAll()
	if !a.closed || !b.closed {
		t.Fatalf("members not closed")
	}
	if h.Len() != 2 {
		t.Fatalf("members remove themselves, hub len=%d", h.Len())
	}
}
