package main

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/webmanager/internal/protocol/schema"
	"github.com/danmuck/webmanager/internal/webmanager"
)

type fileConfig struct {
	ListenAddr         string            `toml:"listen_addr"`
	WebsocketPath      string            `toml:"websocket_path"`
	StaticDocumentPath string            `toml:"static_document_path"`
	SensactPath        string            `toml:"sensact_path"`
	MetricsPath        string            `toml:"metrics_path"`
	CORSOrigins        []string          `toml:"cors_origins"`
	KnownGoodSsid      string            `toml:"known_good_ssid"`
	BroadcastInterval  string            `toml:"broadcast_interval"`
	BroadcastCycle     int               `toml:"broadcast_cycle"`
	BroadcastEnabled   bool              `toml:"broadcast_enabled"`
	ReadLimitBytes     int64             `toml:"read_limit_bytes"`
	WriteTimeout       string            `toml:"write_timeout"`
	OutboundQueue      int               `toml:"outbound_queue"`
	FramesPerSecond    float64           `toml:"frames_per_second"`
	FrameBurst         int               `toml:"frame_burst"`
	ShutdownTimeout    string            `toml:"shutdown_timeout"`
	Latency            map[string]string `toml:"latency"`
}

func loadServiceConfig(path string) (webmanager.ServiceConfig, error) {
	cfg := webmanager.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return webmanager.ServiceConfig{}, fmt.Errorf("load webmanager config: %w", err)
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("websocket_path") {
		cfg.WebsocketPath = strings.TrimSpace(raw.WebsocketPath)
	}
	if meta.IsDefined("static_document_path") {
		cfg.StaticDocumentPath = strings.TrimSpace(raw.StaticDocumentPath)
	}
	if meta.IsDefined("sensact_path") {
		cfg.SensactPath = strings.TrimSpace(raw.SensactPath)
	}
	if meta.IsDefined("metrics_path") {
		cfg.MetricsPath = strings.TrimSpace(raw.MetricsPath)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeOrigins(raw.CORSOrigins)
	}
	if meta.IsDefined("known_good_ssid") {
		cfg.KnownGoodSsid = raw.KnownGoodSsid
	}

	if meta.IsDefined("broadcast_interval") {
		d, err := parsePositiveDuration("broadcast_interval", raw.BroadcastInterval)
		if err != nil {
			return webmanager.ServiceConfig{}, err
		}
		cfg.Broadcast.Interval = d
	}
	if meta.IsDefined("broadcast_cycle") {
		if raw.BroadcastCycle <= 0 {
			return webmanager.ServiceConfig{}, fmt.Errorf("broadcast_cycle must be > 0")
		}
		cfg.Broadcast.Cycle = raw.BroadcastCycle
	}
	if meta.IsDefined("broadcast_enabled") {
		cfg.Broadcast.Enabled = raw.BroadcastEnabled
	}

	if meta.IsDefined("read_limit_bytes") {
		if raw.ReadLimitBytes <= 0 {
			return webmanager.ServiceConfig{}, fmt.Errorf("read_limit_bytes must be > 0")
		}
		cfg.Session.ReadLimitBytes = raw.ReadLimitBytes
	}
	if meta.IsDefined("write_timeout") {
		d, err := parsePositiveDuration("write_timeout", raw.WriteTimeout)
		if err != nil {
			return webmanager.ServiceConfig{}, err
		}
		cfg.Session.WriteTimeout = d
	}
	if meta.IsDefined("outbound_queue") {
		if raw.OutboundQueue <= 0 {
			return webmanager.ServiceConfig{}, fmt.Errorf("outbound_queue must be > 0")
		}
		cfg.Session.OutboundQueue = raw.OutboundQueue
	}
	if meta.IsDefined("frames_per_second") {
		cfg.Session.FramesPerSecond = raw.FramesPerSecond
	}
	if meta.IsDefined("frame_burst") {
		cfg.Session.FrameBurst = raw.FrameBurst
	}
	if meta.IsDefined("shutdown_timeout") {
		d, err := parsePositiveDuration("shutdown_timeout", raw.ShutdownTimeout)
		if err != nil {
			return webmanager.ServiceConfig{}, err
		}
		cfg.ShutdownTimeout = d
	}

	if meta.IsDefined("latency") {
		latency, err := parseLatency(cfg.Latency, raw.Latency)
		if err != nil {
			return webmanager.ServiceConfig{}, err
		}
		cfg.Latency = latency
	}

	if err := cfg.Validate(); err != nil {
		return webmanager.ServiceConfig{}, fmt.Errorf("validate webmanager config: %w", err)
	}
	return cfg, nil
}

// parseLatency overlays per-kind durations, keyed by request kind name, onto base.
func parseLatency(base map[schema.RequestKind]time.Duration, in map[string]string) (map[schema.RequestKind]time.Duration, error) {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[schema.RequestKind]time.Duration, len(in))
	}
	for name, value := range in {
		kind, ok := schema.ParseRequestKind(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("latency: unknown request kind %q", name)
		}
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("parse latency.%s: %w", name, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("latency.%s must be >= 0", name)
		}
		out[kind] = d
	}
	return out, nil
}

func parsePositiveDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return d, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
