// Package httpserver exposes the caption endpoints: one duplex websocket
// route per ASR vendor plus a health check.
package httpserver

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lingostream/livecap/internal/config"
)

// Server wraps echo and the session wiring.
type Server struct {
	echo   *echo.Echo
	cfg    config.Config
	logger *log.Logger
}

// New builds the HTTP server and registers all routes.
func New(cfg config.Config, logger *log.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, cfg: cfg, logger: logger}
	e.GET("/healthz", s.handleHealth)
	e.GET("/stt/deepgram", s.handleDeepgram)
	e.GET("/stt/assemblyai", s.handleAssemblyAI)
	return s
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "address", s.cfg.HTTPAddress)
	return s.echo.Start(s.cfg.HTTPAddress)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(200, map[string]string{"status": "ok"})
}
