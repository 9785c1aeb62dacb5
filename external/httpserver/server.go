package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pairloop/pairloop/internal/config"
	"github.com/pairloop/pairloop/internal/pairing"
	"github.com/pairloop/pairloop/internal/pipeline"
	"github.com/pairloop/pairloop/internal/video"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the webhook, task-callback and internal trigger endpoints.
// Webhooks are authenticated by platform signature, task callbacks by OIDC
// token, internal triggers by a shared token. Authentication always runs
// before any side effect.
type Server struct {
	cfg      *config.Config
	manager  *pipeline.Manager
	engine   *pairing.Engine
	video    video.Client
	verifier TokenVerifier
	router   *gin.Engine
	httpSrv  *http.Server
}

func NewServer(cfg *config.Config, manager *pipeline.Manager, engine *pairing.Engine, vc video.Client, verifier TokenVerifier) *Server {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		cfg:      cfg,
		manager:  manager,
		engine:   engine,
		video:    vc,
		verifier: verifier,
		router:   router,
	}

	router.GET("/healthz", s.handleHealthz)

	router.POST("/webhooks/rooms", s.handleRoomWebhook)
	router.POST("/webhooks/transcriptions", s.handleTranscriptionWebhook)

	router.POST("/tasks/operation-check", s.requireTaskOIDC, s.handleOperationCheck)

	internal := router.Group("/internal", s.requireInternalToken)
	{
		internal.POST("/schedules/run", s.handleRunSchedules)
		internal.POST("/rooms/ensure", s.handleEnsureRoom)
		internal.POST("/rooms/close", s.handleCloseRoom)
	}

	return s
}

func (s *Server) Run() error {
	s.httpSrv = &http.Server{
		Addr:    s.cfg.HTTPListenAddr,
		Handler: s.router,
	}
	slog.Info("http server listening", "addr", s.cfg.HTTPListenAddr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown() error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}
