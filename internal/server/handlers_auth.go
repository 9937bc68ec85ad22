package server

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Logesh0108/secure-chat-backend/internal/domain"
	apperrors "github.com/Logesh0108/secure-chat-backend/internal/errors"
	"github.com/Logesh0108/secure-chat-backend/internal/logging"
)

// Session keys
const (
	sessionName     = "secure-chat-session"
	sessionKeyEmail = "email"
)

type sendOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", apperrors.ValidationError("invalid email address")
	}
	return strings.ToLower(addr.Address), nil
}

func (s *Server) handleSendOTP(c echo.Context) error {
	var req sendOTPRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	address, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}

	if err := s.gate.Issue(c.Request().Context(), address); err != nil {
		if errors.Is(err, domain.ErrPasscodeStillLive) {
			return apperrors.RateLimitedError("OTP already sent. Please wait.")
		}
		return apperrors.ExternalError("failed to send OTP", err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "OTP sent successfully"})
}

func (s *Server) handleVerifyOTP(c echo.Context) error {
	var req verifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	address, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}
	if req.OTP == "" {
		return apperrors.ValidationError("otp is required")
	}

	if err := s.gate.Verify(c.Request().Context(), address, req.OTP); err != nil {
		switch {
		case errors.Is(err, domain.ErrPasscodeNotFound):
			return apperrors.ValidationError("OTP not found")
		case errors.Is(err, domain.ErrPasscodeMismatch):
			return apperrors.ValidationError("Invalid OTP")
		default:
			return apperrors.InternalError("failed to verify OTP", err)
		}
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		// A stale or tampered cookie decodes to an error but still yields a
		// fresh session to write into.
		logging.WithError(err).Warn("failed to decode existing session, issuing a new one")
	}
	session.Values[sessionKeyEmail] = address
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "OTP verified"})
}

// sessionEmail extracts the verified address from the request's session
// cookie. Empty when no valid session exists.
func (s *Server) sessionEmail(c echo.Context) string {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return ""
	}
	address, _ := session.Values[sessionKeyEmail].(string)
	return address
}
