// Package httpserver is the read-only ops surface: health probes, prometheus
// metrics, and the leaderboard endpoint.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/guildpulse/internal/rank"
)

type appService interface {
	Leaderboard(ctx context.Context, communityID string, limit int) ([]rank.Standing, error)
}

type Server struct {
	echo         *echo.Echo
	port         string
	app          appService
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(port string, app appService, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		port:         port,
		app:          app,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.port)
	if err := s.echo.Start(":" + s.port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
