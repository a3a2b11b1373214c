package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/webmanager/internal/ids"
	"github.com/danmuck/webmanager/internal/observability"
	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/frame"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	ErrTransport     = errors.New("session: transport failure")
	ErrSessionClosed = errors.New("session: closed")
	ErrOutboundFull  = errors.New("session: outbound queue full")
)

// Transport is the message-oriented connection a session runs on.
// *websocket.Conn satisfies it.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

type readLimiter interface {
	SetReadLimit(limit int64)
}

// Dispatcher receives every inbound binary frame on the session loop.
type Dispatcher interface {
	Dispatch(s *Session, msg []byte)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(s *Session, msg []byte)

func (f DispatcherFunc) Dispatch(s *Session, msg []byte) { f(s, msg) }

// Session is server-side state for one live connection.
type Session struct {
	id         string
	cfg        Config
	transport  Transport
	dispatcher Dispatcher
	limiter    *rate.Limiter
	codec      envelope.Codec
	startedAt  time.Time

	inbound  chan []byte
	outbound chan []byte
	due      chan uint64

	pending *CompletionSet
	nextID  atomic.Uint64

	// loop-only
	values map[string]any

	writeMu sync.Mutex
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
	cause     error
}

func New(t Transport, cfg Config, d Dispatcher) *Session {
	cfg = cfg.normalized()
	if rl, ok := t.(readLimiter); ok {
		rl.SetReadLimit(cfg.ReadLimitBytes)
	}
	return &Session{
		id:         ids.New(),
		cfg:        cfg,
		transport:  t,
		dispatcher: d,
		limiter:    cfg.limiter(),
		codec:      envelope.NewCodec(frame.DefaultLimits()),
		startedAt:  time.Now(),
		inbound:    make(chan []byte, cfg.InboundQueue),
		outbound:   make(chan []byte, cfg.OutboundQueue),
		due:        make(chan uint64),
		pending:    NewCompletionSet(),
		values:     make(map[string]any),
		done:       make(chan struct{}),
	}
}

func (s *Session) ID() string                   { return s.id }
func (s *Session) StartedAt() time.Time         { return s.startedAt }
func (s *Session) Done() <-chan struct{}        { return s.done }
func (s *Session) Pending() []PendingCompletion { return s.pending.List() }

// Err returns the reason the session closed, or nil while it is open.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.cause
	default:
		return nil
	}
}

// Value returns session-scoped handler state. Loop-only.
func (s *Session) Value(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// SetValue stores session-scoped handler state. Loop-only.
func (s *Session) SetValue(key string, v any) {
	s.values[key] = v
}

// Run drives the session until the transport fails, ctx ends, or Close is
// called. It returns the close cause.
func (s *Session) Run(ctx context.Context) error {
	log.Debug().Str("session_id", s.id).Msg("session.run start")
	go s.readLoop()
	go s.writeLoop()
	s.loop(ctx)
	log.Debug().Str("session_id", s.id).Err(s.cause).Msg("session.run stop")
	return s.cause
}

func (s *Session) loop(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.closeWith(ctx.Err())
			return
		case raw := <-s.inbound:
			if s.isClosed() {
				return
			}
			s.dispatcher.Dispatch(s, raw)
		case id := <-s.due:
			if s.isClosed() {
				return
			}
			if c, ok := s.pending.Take(id); ok {
				s.complete(c)
			}
		}
	}
}

// Schedule runs fn on the session loop once delay has elapsed. A zero delay
// runs fn immediately. If the session closes first, fn never runs.
// Must be called from the session loop.
func (s *Session) Schedule(kind string, messageID uint64, delay time.Duration, fn func()) {
	now := time.Now()
	c := &PendingCompletion{
		ID:         s.nextID.Add(1),
		Kind:       kind,
		MessageID:  messageID,
		AcceptedAt: now,
		DeadlineAt: now.Add(delay),
		run:        fn,
	}
	if delay <= 0 {
		s.complete(c)
		return
	}
	armed := s.pending.Arm(c, delay, func() {
		select {
		case s.due <- c.ID:
		case <-s.done:
		}
	})
	if !armed {
		observability.RecordCancelledCompletions(1)
	}
}

func (s *Session) complete(c *PendingCompletion) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("session_id", s.id).
				Str("kind", c.Kind).
				Uint64("message_id", c.MessageID).
				Interface("panic", r).
				Msg("session.complete recovered")
		}
	}()
	observability.RecordCompletion(c.Kind, time.Since(c.AcceptedAt))
	c.run()
}

// Send encodes env and queues it for the writer, waiting for queue space.
func (s *Session) Send(env envelope.ResponseEnvelope) error {
	b, err := s.codec.EncodeResponse(env)
	if err != nil {
		return err
	}
	if err := s.SendRaw(b); err != nil {
		return err
	}
	observability.RecordOutboundFrame(env.Response.ResponseKind().String())
	return nil
}

// SendRaw queues an already encoded frame, waiting for queue space.
func (s *Session) SendRaw(msg []byte) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	select {
	case s.outbound <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// TrySend queues an encoded frame without waiting; a full queue drops it.
func (s *Session) TrySend(msg []byte) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	select {
	case s.outbound <- msg:
		return nil
	default:
		return ErrOutboundFull
	}
}

// Close ends the session and cancels every pending completion. Idempotent.
func (s *Session) Close() error {
	s.closeWith(ErrSessionClosed)
	return nil
}

func (s *Session) closeWith(cause error) {
	s.closeOnce.Do(func() {
		s.cause = cause
		close(s.done)
		cancelled := s.pending.CancelAll()
		observability.RecordCancelledCompletions(cancelled)

		s.writeMu.Lock()
		s.closed = true
		err := s.transport.Close()
		s.writeMu.Unlock()

		log.Debug().
			Str("session_id", s.id).
			Int("cancelled", cancelled).
			AnErr("cause", cause).
			AnErr("close_err", err).
			Msg("session.close")
	})
}

func (s *Session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) readLoop() {
	for {
		mt, p, err := s.transport.ReadMessage()
		if err != nil {
			s.closeWith(fmt.Errorf("%w: %w", ErrTransport, err))
			return
		}
		if mt != websocket.BinaryMessage {
			log.Debug().Str("session_id", s.id).Int("message_type", mt).Msg("session.read non-binary dropped")
			continue
		}
		if !s.limiter.Allow() {
			observability.RecordInboundFrame(observability.FrameRateLimited)
			log.Warn().Str("session_id", s.id).Msg("session.read rate limited")
			continue
		}
		select {
		case s.inbound <- p:
		case <-s.done:
			return
		}
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case b := <-s.outbound:
			if err := s.write(b); err != nil {
				if !errors.Is(err, ErrSessionClosed) {
					s.closeWith(fmt.Errorf("%w: %w", ErrTransport, err))
				}
				return
			}
		}
	}
}

// write holds writeMu so no frame reaches the transport after Close.
func (s *Session) write(b []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if d, ok := s.transport.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	return s.transport.WriteMessage(websocket.BinaryMessage, b)
}
