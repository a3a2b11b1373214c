package webmanager

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/danmuck/webmanager/internal/observability"
	"github.com/danmuck/webmanager/internal/plugins"
	"github.com/danmuck/webmanager/internal/plugins/fingerprint"
	"github.com/danmuck/webmanager/internal/plugins/scheduler"
	"github.com/danmuck/webmanager/internal/plugins/sensact"
	"github.com/danmuck/webmanager/internal/plugins/timeseries"
	"github.com/danmuck/webmanager/internal/protocol/schema"
	"github.com/danmuck/webmanager/internal/protocol/session"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Webmanager endpoint configuration.
type ServiceConfig struct {
	ListenAddr         string
	WebsocketPath      string
	StaticDocumentPath string
	SensactPath        string
	MetricsPath        string
	CORSOrigins        []string
	KnownGoodSsid      string
	Broadcast          BroadcasterConfig
	Latency            map[schema.RequestKind]time.Duration
	Session            session.Config
	ShutdownTimeout    time.Duration
}

// Webmanager service defaults for endpoint configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:         ":3000",
		WebsocketPath:      "/webmanager_ws",
		StaticDocumentPath: "../dist_webui/compressed/app.html.br",
		SensactPath:        "/sensact",
		MetricsPath:        "/metrics",
		CORSOrigins:        []string{"*"},
		KnownGoodSsid:      DefaultKnownGoodSsid,
		Broadcast:          DefaultBroadcasterConfig(),
		Latency:            DefaultLatencies(),
		Session:            session.DefaultConfig(),
		ShutdownTimeout:    5 * time.Second,
	}
}

// Collaborators are the request handlers that live outside the core set.
type Collaborators struct {
	Plugins *plugins.Registry
	Series  SeriesProducer
}

// DefaultCollaborators registers the built-in plugins and timeseries producer.
func DefaultCollaborators() (Collaborators, error) {
	reg := plugins.NewRegistry()
	for _, p := range []plugins.Plugin{fingerprint.New(), scheduler.New(), sensact.New()} {
		if err := reg.Register(p); err != nil {
			return Collaborators{}, err
		}
	}
	return Collaborators{Plugins: reg, Series: timeseries.NewProducer()}, nil
}

// Webmanager runtime service: HTTP endpoints, websocket sessions and the
// live-log broadcaster.
type Service struct {
	cfg         ServiceConfig
	appeared    time.Time
	router      *gin.Engine
	upgrader    websocket.Upgrader
	hub         *Hub
	dispatcher  *Dispatcher
	broadcaster *Broadcaster

	sessionCtx    context.Context
	stopSessions  context.CancelFunc
	sessionsGroup sync.WaitGroup
	closeMu       sync.Mutex
	closing       bool
}

// Webmanager service constructor using default configuration and collaborators.
func NewService() (*Service, error) {
	collab, err := DefaultCollaborators()
	if err != nil {
		return nil, err
	}
	return NewServiceWithConfig(DefaultServiceConfig(), collab)
}

// Webmanager service constructor using explicit configuration.
func NewServiceWithConfig(cfg ServiceConfig, collab Collaborators) (*Service, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	observability.RegisterMetrics()

	appeared := time.Now()
	handlers := &Handlers{
		KnownGoodSsid: cfg.KnownGoodSsid,
		Series:        collab.Series,
		StartedAt:     appeared,
	}
	dispatcher, err := NewDispatcher(handlers.Table(), collab.Plugins, cfg.Latency)
	if err != nil {
		return nil, err
	}
	hub := NewHub()
	sessionCtx, stop := context.WithCancel(context.Background())
	s := &Service{
		cfg:          cfg,
		appeared:     appeared,
		hub:          hub,
		dispatcher:   dispatcher,
		broadcaster:  NewBroadcaster(cfg.Broadcast, hub),
		sessionCtx:   sessionCtx,
		stopSessions: stop,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(cfg.CORSOrigins),
		},
	}
	s.router = s.newRouter()
	return s, nil
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	def := DefaultServiceConfig()
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	if strings.TrimSpace(c.WebsocketPath) == "" {
		c.WebsocketPath = def.WebsocketPath
	}
	if strings.TrimSpace(c.SensactPath) == "" {
		c.SensactPath = def.SensactPath
	}
	if strings.TrimSpace(c.MetricsPath) == "" {
		c.MetricsPath = def.MetricsPath
	}
	if c.Latency == nil {
		c.Latency = def.Latency
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	return c
}

// Validate rejects endpoint layouts that cannot be routed.
func (c ServiceConfig) Validate() error {
	paths := map[string]string{
		"websocket_path": c.WebsocketPath,
		"sensact_path":   c.SensactPath,
		"metrics_path":   c.MetricsPath,
	}
	seen := make(map[string]string, len(paths))
	for _, name := range []string{"websocket_path", "sensact_path", "metrics_path"} {
		p := paths[name]
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/': %q", name, p)
		}
		if p == "/" || p == "/health" {
			return fmt.Errorf("%s collides with a fixed route: %q", name, p)
		}
		if other, ok := seen[p]; ok {
			return fmt.Errorf("%s and %s share path %q", other, name, p)
		}
		seen[p] = name
	}
	for kind, d := range c.Latency {
		if !kind.Known() {
			return fmt.Errorf("latency for unknown request kind %d", uint32(kind))
		}
		if d < 0 {
			return fmt.Errorf("latency for %s must be >= 0", kind)
		}
	}
	return nil
}

func (s *Service) Config() ServiceConfig { return s.cfg }
func (s *Service) Hub() *Hub             { return s.hub }
func (s *Service) Handler() http.Handler { return s.router }

// Webmanager runtime entrypoint that blocks until signal shutdown.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("websocket_path", s.cfg.WebsocketPath).
		Msg("webmanager.Service.Run listening")
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server and broadcaster on ln until ctx ends, then shuts
// down: the listener closes, every session closes and its pending completions
// are cancelled.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.broadcaster.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		s.sessionsGroup.Wait()
		log.Info().Err(err).Msg("webmanager.Service.Serve stopped")
		return err
	})
	return g.Wait()
}

// Close ends every live session. Idempotent.
func (s *Service) Close() {
	s.closeMu.Lock()
	s.closing = true
	s.closeMu.Unlock()
	s.stopSessions()
	s.hub.CloseAll()
}

// serveSession owns one upgraded connection until it closes.
func (s *Service) serveSession(conn *websocket.Conn) {
	s.closeMu.Lock()
	if s.closing {
		s.closeMu.Unlock()
		_ = conn.Close()
		return
	}
	s.sessionsGroup.Add(1)
	s.closeMu.Unlock()
	defer s.sessionsGroup.Done()

	sess := session.New(conn, s.cfg.Session, s.dispatcher)
	remote := conn.RemoteAddr().String()
	s.hub.Add(sess)
	defer s.hub.Remove(sess.ID())
	log.Info().
		Str("session_id", sess.ID()).
		Str("remote", remote).
		Int("active_sessions", s.hub.Len()).
		Msg("webmanager.session connected")

	err := sess.Run(s.sessionCtx)
	log.Info().
		Str("session_id", sess.ID()).
		Str("remote", remote).
		AnErr("cause", err).
		Msg("webmanager.session disconnected")
}
