package control

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"SwapSentinel/internal/agent"
	"SwapSentinel/internal/model"
)

// Controller is the agent surface exposed over HTTP.
type Controller interface {
	Start() model.Status
	Stop() model.Status
	Status() model.Status
	Submit(ctx context.Context, kind agent.JobKind) (agent.Result, error)
}

// ServerConfig describes the control server dependencies.
type ServerConfig struct {
	Addr            string
	Agent           Controller
	Metrics         http.Handler
	WithdrawTimeout time.Duration
}

// Server is the HTTP control surface.
type Server struct {
	addr   string
	router *gin.Engine
}

// NewServer builds the router. A nil Metrics handler leaves /metrics unregistered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("control server requires an agent")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.WithdrawTimeout <= 0 {
		cfg.WithdrawTimeout = 2 * time.Minute
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	h := &handlers{agent: cfg.Agent, withdrawTimeout: cfg.WithdrawTimeout}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/start", h.start)
	router.POST("/stop", h.stop)
	router.GET("/status", h.status)
	router.POST("/withdraw", h.withdraw)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Start serves HTTP until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("control server listening", zap.String("component", "control"), zap.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zap.L().Debug("http request",
			zap.String("component", "control"),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("dur", time.Since(start)))
	}
}
