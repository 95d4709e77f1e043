// Package server exposes the URL builder and placeholder decoder over HTTP
// so non-Go frontends can preview what a widget would render.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/AnyUserName/tgimg-render/internal/config"
)

// Server is the preview API.
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	log    *logrus.Entry
}

// New builds the router.  cfg must be valid.
func New(cfg *config.Config) *Server {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	s := &Server{
		cfg:    cfg,
		engine: gin.New(),
		log:    cfg.Log().WithField("component", "server"),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"domain": s.cfg.Domain,
		})
	})

	v1 := s.engine.Group("/v1")
	v1.GET("/url", s.handleURL)
	v1.GET("/placeholder", s.handlePlaceholder)
	v1.GET("/placeholder/*hash", s.handlePlaceholder)
	v1.POST("/render", s.handleRender)
}

// Run serves on cfg.Server.Addr until ctx is cancelled, then drains.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", srv.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}
