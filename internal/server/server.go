// internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"community-scout/internal/common/config"
	"community-scout/internal/common/logger"
	"community-scout/internal/pipeline"
)

// Server is the HTTP shell around the discovery pipeline.
type Server struct {
	httpServer *http.Server
	logger     logger.Logger
}

func New(cfg config.ServerConfig, environment string, pipe *pipeline.Pipeline, log logger.Logger) *Server {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	handler := NewHandler(pipe, log)
	SetupRoutes(router, handler)

	return &Server{
		httpServer: &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.Port),
			Handler:     router,
			ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Second,
		},
		logger: log.With(map[string]interface{}{
			"component": "server",
		}),
	}
}

// SetupRoutes configures all API routes.
func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/healthz", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/discover", handler.Discover) // POST /api/v1/discover
	}
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
