package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Logesh0108/secure-chat-backend/internal/chat"
	"github.com/Logesh0108/secure-chat-backend/internal/domain"
	apperrors "github.com/Logesh0108/secure-chat-backend/internal/errors"
	"github.com/Logesh0108/secure-chat-backend/internal/logging"
	"github.com/Logesh0108/secure-chat-backend/internal/metrics"
)

const defaultUserLabel = "Unknown"

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients send no Origin header.
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleChatWebSocket(c echo.Context) error {
	user := c.QueryParam("user")
	if user == "" {
		user = defaultUserLabel
	}

	address := s.sessionEmail(c)
	if address == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "OTP verification required")
	}
	authorized, err := s.gate.IsSessionAuthorized(c.Request().Context(), address)
	if err != nil {
		return apperrors.ExternalError("failed to check session authorization", err)
	}
	if !authorized {
		return echo.NewHTTPError(http.StatusUnauthorized, "OTP verification required")
	}

	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		metrics.ConnectionsRejected.WithLabelValues(string(reason)).Inc()
		slog.Warn("connection rejected", "reason", reason, "ip", ip)
		if reason == LimitReasonGlobal {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "server at capacity")
		}
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many connections")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.limits.Release(ip)
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	conn := chat.NewConnection(ws, user, s.clock)
	s.registry.Register(conn)
	logging.WithUser(user).Info("websocket connected")

	// Read pump, blocks until the connection closes.
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		s.dispatchFrame(conn, user, data)
	}

	s.registry.Unregister(conn)
	s.limits.Release(ip)
	logging.WithUser(user).Info("websocket disconnected")

	return nil
}

// dispatchFrame routes one inbound client frame. Malformed frames and frames
// with unknown types are dropped without disturbing the connection.
func (s *Server) dispatchFrame(conn *chat.Connection, user string, data []byte) {
	var event domain.InboundEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Debug("dropping malformed frame", "user", user, "error", err)
		return
	}

	switch event.Type {
	case domain.EventMessage:
		msg := s.store.Post(user, domain.KindText, event.Text)
		s.broadcaster.BroadcastAll(msg)

	case domain.EventImage:
		msg := s.store.Post(user, domain.KindImage, event.Image)
		s.broadcaster.BroadcastAll(msg)

	case domain.EventReaction:
		reactions, err := s.store.React(event.MessageID, event.Emoji, user)
		if err != nil {
			logging.WithMessage(event.MessageID).Debug("dropping reaction for unknown message", "user", user)
			return
		}
		s.broadcaster.BroadcastAll(domain.NewReactionEvent(event.MessageID, reactions))

	case domain.EventTyping:
		s.broadcaster.BroadcastExcept(domain.NewTypingEvent(user), conn)

	default:
		slog.Debug("dropping frame with unknown type", "type", event.Type, "user", user)
	}
}
