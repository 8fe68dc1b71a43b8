// Package server exposes the keep-alive and observability endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"MexcPulse/internal/engine"
)

// StatusProvider reports engine state.
type StatusProvider interface {
	Status() engine.Status
}

// Server wraps an Echo HTTP server.
type Server struct {
	echo    *echo.Echo
	addr    string
	status  StatusProvider
	started time.Time
	log     zerolog.Logger
}

// New creates the server. gatherer may be nil to serve the default registry.
func New(addr string, status StatusProvider, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		addr:    addr,
		status:  status,
		started: time.Now(),
		log:     log.With().Str("component", "http").Logger(),
	}
	e.Use(s.recoverPanic, s.requestLogging)

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/", s.index)
	e.GET("/health", s.health)
	e.GET("/status", s.statusHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return s
}

// Start listens in the background.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("http server listening")
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http server error")
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info().Msg("http server stopped")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) index(c echo.Context) error {
	return c.String(http.StatusOK, "MexcPulse is running")
}

func (s *Server) health(c echo.Context) error {
	st := s.status.Status()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"running":        st.Running,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) statusHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.status.Status())
}

func (s *Server) recoverPanic(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Interface("panic", r).Str("path", c.Path()).Msg("handler panicked")
				err = echo.NewHTTPError(http.StatusInternalServerError)
			}
		}()
		return next(c)
	}
}

func (s *Server) requestLogging(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.log.Debug().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("status", c.Response().Status).
			Dur("latency", time.Since(start)).
			Msg("request")
		return err
	}
}
