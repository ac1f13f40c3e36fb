package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statusReply is the JSON body of the admin status endpoint
type statusReply struct {
	Server      string `json:"server"`
	Network     string `json:"network"`
	Uptime      string `json:"uptime"`
	Connections int    `json:"connections"`
	Channels    int    `json:"channels"`
}

// newAdmin builds the admin HTTP endpoint serving live status and the
// Prometheus metrics of this server instance
func (s *Server) newAdmin() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/status", s.handleStatus)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
		s.metrics.registry, promhttp.HandlerOpts{})))

	return e
}

func (s *Server) handleStatus(ctx echo.Context) error {
	s.mu.Lock()
	conns := len(s.conns)
	channels := len(s.channels)
	s.mu.Unlock()

	return ctx.JSON(http.StatusOK, statusReply{
		Server:      s.Name(),
		Network:     s.config.Server.Network,
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
		Connections: conns,
		Channels:    channels,
	})
}
