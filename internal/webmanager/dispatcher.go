package webmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/webmanager/internal/observability"
	"github.com/danmuck/webmanager/internal/plugins"
	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/frame"
	"github.com/danmuck/webmanager/internal/protocol/schema"
	"github.com/danmuck/webmanager/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownDiscriminant = errors.New("webmanager: unknown discriminant")
	ErrUnroutedKind        = errors.New("webmanager: request kind has no handler")
	ErrNoSeriesProducer    = errors.New("webmanager: no timeseries producer")
)

// DefaultLatencies returns the simulated completion time per request kind.
// Kinds not listed complete immediately.
func DefaultLatencies() map[schema.RequestKind]time.Duration {
	return map[schema.RequestKind]time.Duration{
		schema.RequestNetworkInformation: 500 * time.Millisecond,
		schema.RequestSystemData:         500 * time.Millisecond,
		schema.RequestGetUserSettings:    500 * time.Millisecond,
		schema.RequestSetUserSettings:    100 * time.Millisecond,
		schema.RequestJournal:            100 * time.Millisecond,
		schema.RequestWifiConnect:        3 * time.Second,
		schema.RequestEnrollNewFinger:    100 * time.Millisecond,
		schema.RequestScheduler:          100 * time.Millisecond,
		schema.RequestSensactStatus:      100 * time.Millisecond,
	}
}

// Dispatcher routes decoded requests to core handlers or plugins through the
// session's completion scheduler.
type Dispatcher struct {
	codec    envelope.Codec
	handlers map[schema.RequestKind]HandlerFunc
	plugins  *plugins.Registry
	latency  map[schema.RequestKind]time.Duration
}

var _ session.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher binds handlers and plugins. Every request kind must be bound
// to a core handler or claimed by a plugin.
func NewDispatcher(handlers map[schema.RequestKind]HandlerFunc, reg *plugins.Registry, latency map[schema.RequestKind]time.Duration) (*Dispatcher, error) {
	if reg == nil {
		reg = plugins.NewRegistry()
	}
	for _, k := range schema.RequestKinds() {
		if _, ok := handlers[k]; ok {
			continue
		}
		if !reg.Claims(k) {
			return nil, fmt.Errorf("%w: %s", ErrUnroutedKind, k)
		}
	}
	lat := make(map[schema.RequestKind]time.Duration, len(latency))
	for k, d := range latency {
		if d > 0 {
			lat[k] = d
		}
	}
	return &Dispatcher{
		codec:    envelope.NewCodec(frame.DefaultLimits()),
		handlers: handlers,
		plugins:  reg,
		latency:  lat,
	}, nil
}

// Latency returns the configured completion delay for kind.
func (d *Dispatcher) Latency(kind schema.RequestKind) time.Duration {
	return d.latency[kind]
}

// Dispatch decodes one inbound frame and schedules its completion. Malformed
// and unknown frames are dropped; nothing is written back for them.
func (d *Dispatcher) Dispatch(s *session.Session, msg []byte) {
	env, err := d.codec.DecodeRequest(msg)
	switch {
	case envelope.IsUnknownKind(err):
		observability.RecordInboundFrame(observability.FrameUnknown)
		log.Warn().
			Str("session_id", s.ID()).
			Uint64("message_id", env.MessageID).
			Err(fmt.Errorf("%w: %w", ErrUnknownDiscriminant, err)).
			Msg("dispatcher.dispatch dropped")
		return
	case err != nil:
		observability.RecordInboundFrame(observability.FrameDecodeFailed)
		log.Warn().
			Str("session_id", s.ID()).
			Int("bytes", len(msg)).
			Err(err).
			Msg("dispatcher.dispatch dropped")
		return
	}
	observability.RecordInboundFrame(observability.FrameDispatched)
	kind := env.Request.RequestKind()
	log.Debug().
		Str("session_id", s.ID()).
		Str("kind", kind.String()).
		Uint64("message_id", env.MessageID).
		Dur("latency", d.latency[kind]).
		Msg("dispatcher.dispatch accepted")
	s.Schedule(kind.String(), env.MessageID, d.latency[kind], func() {
		d.complete(s, env)
	})
}

// complete runs the bound handler, or offers the request to plugins.
func (d *Dispatcher) complete(conn Conn, env envelope.RequestEnvelope) {
	kind := env.Request.RequestKind()
	if h, ok := d.handlers[kind]; ok {
		if err := h(conn, env); err != nil {
			log.Error().
				Str("session_id", conn.ID()).
				Str("kind", kind.String()).
				Uint64("message_id", env.MessageID).
				Err(err).
				Msg("dispatcher.complete handler failed")
		}
		return
	}
	name, res, err := d.plugins.Offer(conn, env)
	switch res {
	case plugins.Handled:
		log.Debug().Str("session_id", conn.ID()).Str("kind", kind.String()).Str("plugin", name).Msg("dispatcher.complete plugin handled")
	case plugins.ForMeButFailed:
		log.Error().
			Str("session_id", conn.ID()).
			Str("kind", kind.String()).
			Str("plugin", name).
			Err(err).
			Msg("dispatcher.complete plugin failed")
	default:
		log.Warn().
			Str("session_id", conn.ID()).
			Str("kind", kind.String()).
			Err(ErrUnknownDiscriminant).
			Msg("dispatcher.complete no plugin took request")
	}
}
