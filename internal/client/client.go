// Package client is a websocket client for the webmanager envelope protocol.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/frame"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrClosed        = errors.New("client: closed")
	ErrDialExhausted = errors.New("client: dial attempts exhausted")
)

// Client correlates responses to requests by message id. Notifications and
// unsolicited frames are delivered on Notifications.
type Client struct {
	cfg   Config
	conn  *websocket.Conn
	codec envelope.Codec

	nextID  atomic.Uint64
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan envelope.ResponseEnvelope

	notifications chan envelope.ResponseEnvelope
	done          chan struct{}
	closeOnce     sync.Once
	cause         error
}

// Dial connects to cfg.URL, retrying with backoff until MaxAttempts or ctx ends.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.Notifications <= 0 {
		cfg.Notifications = def.Notifications
	}
	dialer := websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 1; cfg.MaxAttempts <= 0 || attempt <= cfg.MaxAttempts; attempt++ {
		conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
		if err == nil {
			log.Debug().Str("url", cfg.URL).Int("attempt", attempt).Msg("client.dial connected")
			return newClient(cfg, conn), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		delay := NextBackoffDelay(cfg.Backoff, attempt, rng)
		log.Warn().Str("url", cfg.URL).Int("attempt", attempt).Dur("retry_in", delay).Err(err).Msg("client.dial failed")
		if err := waitBackoff(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrDialExhausted, lastErr)
}

func newClient(cfg Config, conn *websocket.Conn) *Client {
	c := &Client{
		cfg:           cfg,
		conn:          conn,
		codec:         envelope.NewCodec(frame.DefaultLimits()),
		pending:       make(map[uint64]chan envelope.ResponseEnvelope),
		notifications: make(chan envelope.ResponseEnvelope, cfg.Notifications),
		done:          make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) Notifications() <-chan envelope.ResponseEnvelope { return c.notifications }
func (c *Client) Done() <-chan struct{}                           { return c.done }

// Send writes req without waiting for a reply and returns its message id.
func (c *Client) Send(req envelope.Request) (uint64, error) {
	id := c.nextID.Add(1)
	return id, c.write(envelope.RequestEnvelope{MessageID: id, Request: req})
}

// Call writes req and waits for the response that echoes its message id.
func (c *Client) Call(ctx context.Context, req envelope.Request) (envelope.ResponseEnvelope, error) {
	id := c.nextID.Add(1)
	ch := make(chan envelope.ResponseEnvelope, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(envelope.RequestEnvelope{MessageID: id, Request: req}); err != nil {
		return envelope.ResponseEnvelope{}, err
	}
	select {
	case env := <-ch:
		return env, nil
	case <-ctx.Done():
		return envelope.ResponseEnvelope{}, ctx.Err()
	case <-c.done:
		return envelope.ResponseEnvelope{}, c.cause
	}
}

func (c *Client) write(env envelope.RequestEnvelope) error {
	b, err := c.codec.EncodeRequest(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return c.cause
	default:
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, b)
}

// Close ends the connection. Idempotent.
func (c *Client) Close() error {
	c.closeWith(ErrClosed)
	return nil
}

func (c *Client) closeWith(cause error) {
	c.closeOnce.Do(func() {
		c.cause = cause
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readLoop() {
	for {
		mt, b, err := c.conn.ReadMessage()
		if err != nil {
			c.closeWith(fmt.Errorf("%w: %w", ErrClosed, err))
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		env, err := c.codec.DecodeResponse(b)
		if err != nil {
			log.Warn().Int("bytes", len(b)).Err(err).Msg("client.read dropped")
			continue
		}
		if c.deliver(env) {
			continue
		}
		select {
		case c.notifications <- env:
		default:
			log.Debug().Str("kind", env.Response.ResponseKind().String()).Msg("client.read notification dropped")
		}
	}
}

// deliver hands env to the waiting Call, if any.
func (c *Client) deliver(env envelope.ResponseEnvelope) bool {
	if env.MessageID == 0 || env.Response.ResponseKind().IsNotification() {
		return false
	}
	c.mu.Lock()
	ch, ok := c.pending[env.MessageID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- env:
	default:
	}
	return true
}
