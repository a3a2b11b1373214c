// Package fakeconn records envelopes sent by plugins and handlers in tests.
package fakeconn

import (
	"errors"
	"sync"

	"github.com/danmuck/webmanager/internal/protocol/envelope"
)

var ErrClosed = errors.New("fakeconn: closed")

// Conn is an in-memory plugins.Conn.
type Conn struct {
	mu     sync.Mutex
	id     string
	sent   []envelope.ResponseEnvelope
	values map[string]any
	closed bool
}

func New(id string) *Conn {
	return &Conn{id: id, values: make(map[string]any)}
}

func (c *Conn) ID() string { return c.id }

// Send round-trips env through the codec so tests see what a client would decode.
func (c *Conn) Send(env envelope.ResponseEnvelope) error {
	b, err := envelope.EncodeResponse(env)
	if err != nil {
		return err
	}
	decoded, err := envelope.DecodeResponse(b)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.sent = append(c.sent, decoded)
	return nil
}

func (c *Conn) Value(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *Conn) SetValue(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = v
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Sent returns a copy of every envelope accepted so far.
func (c *Conn) Sent() []envelope.ResponseEnvelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]envelope.ResponseEnvelope(nil), c.sent...)
}
