package client

import "time"

// BackoffConfig defines redial backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines how a client reaches one webmanager endpoint.
type Config struct {
	URL           string
	DialTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxAttempts   int // 0 retries until ctx ends
	Notifications int
	Backoff       BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		URL:           "ws://127.0.0.1:3000/webmanager_ws",
		DialTimeout:   5 * time.Second,
		WriteTimeout:  10 * time.Second,
		MaxAttempts:   5,
		Notifications: 64,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}
