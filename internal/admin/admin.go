// Package admin serves the HTTP side channel of the CoAP binaries: health,
// readiness, prometheus metrics and a JSON status snapshot.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/edgecoap/internal/auth"
	"github.com/danmuck/edgecoap/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const Version = "0.1.0"

// StatusFunc returns the JSON-encodable state reported on /status.
type StatusFunc func() any

// ReadyFunc reports whether the node can serve traffic.
type ReadyFunc func() bool

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	router *gin.Engine
	status StatusFunc
	ready  ReadyFunc
	guard  auth.Validator
}

type Option func(*Server)

// WithToken requires "Authorization: Bearer <token>" on /status and
// /metrics. An empty token leaves them open.
func WithToken(token string) Option {
	return func(s *Server) {
		if token != "" {
			s.guard = auth.StaticToken{Token: token}
		}
	}
}

func New(id, addr string, corsOrigins []string, status StatusFunc, ready ReadyFunc, opts ...Option) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		router:   r,
		status:   status,
		ready:    ready,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": Version,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.ready == nil || s.ready()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": Version,
		})
	})

	guarded := s.router.Group("/", s.requireToken())
	guarded.GET("/metrics", gin.WrapH(promhttp.Handler()))

	guarded.GET("/status", func(c *gin.Context) {
		var state any
		if s.status != nil {
			state = s.status()
		}
		c.JSON(http.StatusOK, gin.H{
			"service": s.ID,
			"status":  state,
		})
	})
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.guard == nil {
			c.Next()
			return
		}
		if err := auth.CheckHeader(s.guard, c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("service", s.ID).Str("addr", s.Addr).Msg("admin http listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
