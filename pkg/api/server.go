package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/shiftgate/shiftgate/pkg/controller"
	"github.com/shiftgate/shiftgate/pkg/events"
	"github.com/shiftgate/shiftgate/pkg/log"
	"github.com/shiftgate/shiftgate/pkg/metrics"
)

// Server is the HTTP control surface for the rollout engine
type Server struct {
	engine *controller.Engine
	broker *events.Broker
	router *gin.Engine
	srv    *http.Server
	logger zerolog.Logger
}

// NewServer wires the engine and event broker behind the HTTP API
func NewServer(engine *controller.Engine, broker *events.Broker) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine: engine,
		broker: broker,
		router: gin.New(),
		logger: log.WithComponent("api"),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.router.Group("/v1")
	{
		v1.POST("/rollouts", s.startRollout)
		v1.GET("/rollouts", s.listRollouts)
		v1.GET("/rollouts/:id", s.getRollout)
		v1.POST("/rollouts/:id/abort", s.abortRollout)
		v1.GET("/events", s.streamEvents)
	}

	s.router.GET("/healthz", gin.WrapF(metrics.HealthHandler()))
	s.router.GET("/readyz", gin.WrapF(metrics.ReadyHandler()))
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves until Shutdown
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("api server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, bounded by ctx
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		// The event stream holds its connection open for its lifetime;
		// logging it as a completed request would be noise
		if path == "/v1/events" {
			return
		}
		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client", c.ClientIP()).
			Msg("request")
	}
}
