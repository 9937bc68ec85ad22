package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Root doubles as the hosting platform's health probe
	s.echo.GET("/", s.handleRoot)
	s.echo.HEAD("/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Admission gate
	s.echo.POST("/auth/send-otp", s.handleSendOTP)
	s.echo.POST("/auth/verify-otp", s.handleVerifyOTP)

	// Chat WebSocket
	s.echo.GET("/ws/chat", s.handleChatWebSocket)
}
