package client

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/schema"
	"github.com/danmuck/webmanager/internal/testutil/testlog"
	"github.com/danmuck/webmanager/internal/webmanager"
)

func startServer(t *testing.T) string {
	t.Helper()
	cfg := webmanager.DefaultServiceConfig()
	cfg.Broadcast.Enabled = false
	cfg.Latency = map[schema.RequestKind]time.Duration{schema.RequestWifiConnect: 100 * time.Millisecond}
	collab, err := webmanager.DefaultCollaborators()
	if err != nil {
		t.Fatalf("collaborators: %v", err)
	}
	svc, err := webmanager.NewServiceWithConfig(cfg, collab)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(svc.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + cfg.WebsocketPath
}

func TestCallCorrelatesResponses(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.URL = startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, cfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	slow := make(chan envelope.ResponseEnvelope, 1)
	go func() {
		env, err := c.Call(ctx, envelope.WifiConnectRequest{Ssid: webmanager.DefaultKnownGoodSsid})
		if err != nil {
			t.Errorf("wifi call: %v", err)
		}
		slow <- env
	}()
	env, err := c.Call(ctx, envelope.GetUserSettingsRequest{GroupKey: "Group1"})
	if err != nil {
		t.Fatalf("settings call: %v", err)
	}
	if env.Response.ResponseKind() != schema.ResponseGetUserSettings {
		t.Fatalf("unexpected response %#v", env)
	}
	if got := <-slow; got.Response.ResponseKind() != schema.ResponseWifiConnectSuccessful {
		t.Fatalf("unexpected wifi response %#v", got)
	}
}

func TestNotificationsAreSeparated(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.URL = startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, cfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	env, err := c.Call(ctx, envelope.EnrollNewFingerRequest{Name: "thumb"})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if env.Response.ResponseKind() != schema.ResponseEnrollNewFinger {
		t.Fatalf("unexpected enroll response %#v", env)
	}
	for i := 0; i < 3; i++ {
		select {
		case n := <-c.Notifications():
			if n.Response.ResponseKind() != schema.NotifyEnrollNewFinger {
				t.Fatalf("unexpected notification %#v", n)
			}
		case <-ctx.Done():
			t.Fatalf("missing enroll progress")
		}
	}
}

func TestDialExhaustsAttempts(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := DefaultConfig()
	cfg.URL = "ws://" + addr + "/webmanager_ws"
	cfg.MaxAttempts = 2
	cfg.Backoff = BackoffConfig{InitialDelay: 5 * time.Millisecond, Multiplier: 2}
	_, err = Dial(context.Background(), cfg)
	if !errors.Is(err, ErrDialExhausted) {
		t.Fatalf("expected ErrDialExhausted, got %v", err)
	}
}

func TestCallAfterCloseFails(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.URL = startServer(t)
	c, err := Dial(context.Background(), cfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = c.Close()
	if _, err := c.Call(context.Background(), envelope.JournalRequest{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
