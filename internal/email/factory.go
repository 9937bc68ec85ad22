package email

import (
	"fmt"

	"github.com/Logesh0108/secure-chat-backend/internal/config"
)

// NewSender selects an email sender implementation based on configuration.
func NewSender(cfg *config.Config) (Sender, error) {
	switch cfg.EmailProvider {
	case "log":
		return &LogSender{senderAddress: cfg.EmailSender}, nil
	case "resend":
		if cfg.EmailAPIKey == "" {
			return nil, fmt.Errorf("email provider is 'resend' but EMAIL_API_KEY is not set")
		}
		return newResendSender(cfg.EmailAPIKey, cfg.EmailSender), nil
	default:
		return nil, fmt.Errorf("unknown email provider: %q", cfg.EmailProvider)
	}
}
