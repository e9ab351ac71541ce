package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"papertrade/internal/ledger"
	"papertrade/internal/logger"
	"papertrade/internal/scheduler"
	"papertrade/internal/snapshot"
	"papertrade/internal/store"
)

// Server exposes the admin/API surface over HTTP: account lifecycle, manual
// trades, ledger queries and the manual cycle trigger.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig describes the server dependencies.
type ServerConfig struct {
	Addr      string
	Ledger    *ledger.Service
	Snapshots *snapshot.Engine
	Pipeline  *scheduler.Pipeline
	Store     store.Store
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Ledger == nil || cfg.Snapshots == nil || cfg.Pipeline == nil {
		return nil, errors.New("http server requires ledger, snapshots and pipeline")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{
		ledger:    cfg.Ledger,
		snapshots: cfg.Snapshots,
		pipeline:  cfg.Pipeline,
		store:     cfg.Store,
	}
	h.register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http: listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("http: %s %s -> %d in %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Truncate(time.Millisecond))
	}
}
