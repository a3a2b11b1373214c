package session

import (
	"time"

	"golang.org/x/time/rate"
)

// Config defines per-connection limits.
type Config struct {
	ReadLimitBytes  int64
	WriteTimeout    time.Duration
	InboundQueue    int
	OutboundQueue   int
	FramesPerSecond float64
	FrameBurst      int
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ReadLimitBytes:  1 << 20,
		WriteTimeout:    10 * time.Second,
		InboundQueue:    64,
		OutboundQueue:   64,
		FramesPerSecond: 50,
		FrameBurst:      100,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.ReadLimitBytes <= 0 {
		c.ReadLimitBytes = def.ReadLimitBytes
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.InboundQueue <= 0 {
		c.InboundQueue = def.InboundQueue
	}
	if c.OutboundQueue <= 0 {
		c.OutboundQueue = def.OutboundQueue
	}
	return c
}

// limiter returns an unlimited limiter when FramesPerSecond is not positive.
func (c Config) limiter() *rate.Limiter {
	if c.FramesPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := c.FrameBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.FramesPerSecond), burst)
}
