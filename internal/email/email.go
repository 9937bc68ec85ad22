package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Logesh0108/secure-chat-backend/internal/retry"
)

// Sender delivers one-time passcodes to users. Implementations exist for
// local development (LogSender) and production (ResendSender).
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// LogSender writes emails to the structured log instead of sending them.
// Useful for local development where no email provider is configured.
type LogSender struct {
	senderAddress string
}

func (s *LogSender) Send(_ context.Context, to, subject, htmlBody string) error {
	slog.Info("email delivered to log",
		"from", s.senderAddress,
		"to", to,
		"subject", subject,
		"body", htmlBody,
	)
	return nil
}

const resendEndpoint = "https://api.resend.com/emails"

// ResendSender sends emails through the Resend HTTP API.
type ResendSender struct {
	apiKey        string
	senderAddress string
	endpoint      string
	client        *http.Client
	retryPolicy   retry.Policy
}

type resendPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// statusError carries the HTTP status of a failed Resend call so the retry
// classifier can tell rate limits and outages from permanent refusals.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("resend API returned status %d", e.status)
}

func classifyResendError(err error) retry.Action {
	var se *statusError
	if !errors.As(err, &se) {
		// Network-level failure, worth another attempt.
		return retry.Retry
	}
	switch {
	case se.status == http.StatusTooManyRequests:
		return retry.After
	case se.status >= 500:
		return retry.Retry
	default:
		return retry.Stop
	}
}

func (s *ResendSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload := resendPayload{
		From:    s.senderAddress,
		To:      to,
		Subject: subject,
		HTML:    htmlBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling resend payload: %w", err)
	}

	err = retry.Do(ctx, s.retryPolicy, classifyResendError, func() error {
		return s.post(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("calling resend API: %w", err)
	}

	slog.Info("email sent via resend", "to", to, "subject", subject)
	return nil
}

func (s *ResendSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &statusError{status: resp.StatusCode}
	}
	return nil
}

func newResendSender(apiKey, senderAddress string) *ResendSender {
	return &ResendSender{
		apiKey:        apiKey,
		senderAddress: senderAddress,
		endpoint:      resendEndpoint,
		client:        &http.Client{Timeout: 10 * time.Second},
		retryPolicy: retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   500 * time.Millisecond,
			RateLimitBackoff: 2 * time.Second,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("retrying resend call", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
	}
}
