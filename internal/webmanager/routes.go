package webmanager

import (
	"errors"
	"io"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/danmuck/webmanager/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var ErrUpgradePathMismatch = errors.New("webmanager: upgrade outside websocket path")

// maxSensactBody bounds the reserved submission endpoint.
const maxSensactBody = 1 << 20

func (s *Service) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(rejectStrayUpgrades(s.cfg.WebsocketPath))
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: originAllowed(s.cfg.CORSOrigins),
		AllowMethods:    []string{"GET", "POST"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	s.registerRoutes(r)
	return r
}

func (s *Service) registerRoutes(r *gin.Engine) {
	r.GET(s.cfg.WebsocketPath, func(c *gin.Context) {
		conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// the upgrader has already written the HTTP error
			log.Warn().Str("remote", c.ClientIP()).Err(err).Msg("routes.upgrade failed")
			return
		}
		s.serveSession(conn)
	})

	r.GET("/", func(c *gin.Context) {
		doc, err := os.ReadFile(s.cfg.StaticDocumentPath)
		if err != nil {
			log.Warn().Str("path", s.cfg.StaticDocumentPath).Err(err).Msg("routes.static unavailable")
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.Header("Content-Encoding", "br")
		c.Data(http.StatusOK, "text/html", doc)
	})

	// reserved for envelope submission without a socket
	r.POST(s.cfg.SensactPath, func(c *gin.Context) {
		n, err := io.Copy(io.Discard, http.MaxBytesReader(c.Writer, c.Request.Body, maxSensactBody))
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		log.Debug().Int64("bytes", n).Msg("routes.sensact")
		c.JSON(http.StatusNotImplemented, gin.H{"error": "not implemented"})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"uptime":   time.Since(s.appeared).String(),
			"service":  "webmanager",
			"version":  "0.0.1",
			"sessions": s.hub.Len(),
		})
	})

	r.GET(s.cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
}

// rejectStrayUpgrades drops the transport of any upgrade request that does
// not target the websocket path. No HTTP response is written.
func rejectStrayUpgrades(path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == path || !websocket.IsWebSocketUpgrade(c.Request) {
			c.Next()
			return
		}
		log.Warn().
			Str("path", c.Request.URL.Path).
			Str("remote", c.ClientIP()).
			Err(ErrUpgradePathMismatch).
			Msg("routes.upgrade rejected")
		c.Abort()
		conn, _, err := c.Writer.Hijack()
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		_ = conn.Close()
	}
}

// originAllowed matches an Origin header against the configured list; "*"
// admits any origin.
func originAllowed(origins []string) func(string) bool {
	allowed := normalizeOrigins(origins)
	return func(origin string) bool {
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

// checkOrigin admits upgrades from allowed origins and from clients that send
// no Origin header.
func checkOrigin(origins []string) func(*http.Request) bool {
	allow := originAllowed(origins)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allow(origin)
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
