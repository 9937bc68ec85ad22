// Package server implements the HTTP surface using the Echo framework.
//
// Routes: OTP admission (send/verify), the chat WebSocket endpoint, and
// observability (health, metrics, version). Handlers are split by concern:
// handlers_auth.go, handlers_chat.go, handlers_health.go.
package server
