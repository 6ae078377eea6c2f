package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reillywatson/dorastats/internal/observability"
)

// NewRouter wires the handlers into a gin engine
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), observability.Middleware())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/dashboard", h.Dashboard)
	v1.GET("/metrics", h.Metrics)
	v1.GET("/rollups", h.Rollups)
	v1.GET("/repos", h.Repos)
	return r
}

type Server struct {
	HTTP *http.Server
	Log  *slog.Logger
}

func NewServer(addr string, log *slog.Logger, h *Handlers) *Server {
	hs := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &Server{HTTP: hs, Log: log}
}

// Start blocks serving until Stop is called
func (s *Server) Start() error {
	s.Log.Info("http server starting", "addr", s.HTTP.Addr)
	if err := s.HTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.Log.Info("http server stopping")
	return s.HTTP.Shutdown(ctx)
}
