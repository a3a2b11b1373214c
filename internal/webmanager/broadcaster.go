package webmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// BroadcasterConfig controls the periodic live-log push. Cycle is the number
// of ticks per round; only the first tick of a round emits.
type BroadcasterConfig struct {
	Enabled  bool
	Interval time.Duration
	Cycle    int
}

func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		Enabled:  true,
		Interval: time.Second,
		Cycle:    3,
	}
}

// Broadcaster pushes a LiveLogItem notification to every hub member on a
// fixed cadence.
type Broadcaster struct {
	cfg   BroadcasterConfig
	hub   *Hub
	codec envelope.Codec
	now   func() time.Time
	step  int
}

func NewBroadcaster(cfg BroadcasterConfig, hub *Hub) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultBroadcasterConfig().Interval
	}
	if cfg.Cycle <= 0 {
		cfg.Cycle = 1
	}
	return &Broadcaster{
		cfg:   cfg,
		hub:   hub,
		codec: envelope.NewCodec(frame.DefaultLimits()),
		now:   time.Now,
	}
}

// Run ticks until ctx ends. A disabled broadcaster returns immediately.
func (b *Broadcaster) Run(ctx context.Context) error {
	if !b.cfg.Enabled {
		return nil
	}
	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.Tick()
		}
	}
}

// Tick advances one step of the cycle. It reports whether a frame was offered.
func (b *Broadcaster) Tick() bool {
	step := b.step
	b.step = (b.step + 1) % b.cfg.Cycle
	if step != 0 {
		// remaining steps are reserved for other push kinds
		return false
	}
	msg, err := b.codec.EncodeResponse(envelope.ResponseEnvelope{
		Response: envelope.LiveLogItemNotification{
			Text: fmt.Sprintf("live log item %d", b.now().UnixMilli()),
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("broadcaster.tick encode failed")
		return false
	}
	delivered, dropped := b.hub.Broadcast(msg)
	if dropped > 0 {
		log.Debug().Int("delivered", delivered).Int("dropped", dropped).Msg("broadcaster.tick")
	}
	return true
}
