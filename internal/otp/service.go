package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Logesh0108/secure-chat-backend/internal/domain"
	"github.com/Logesh0108/secure-chat-backend/internal/email"
	"github.com/Logesh0108/secure-chat-backend/internal/metrics"
)

// PasscodeStore is the persistence the service needs for issued codes and
// verified-session markers.
type PasscodeStore interface {
	SavePasscode(ctx context.Context, email, codeHash string, ttl time.Duration) error
	GetPasscode(ctx context.Context, email string) (string, error)
	DeletePasscode(ctx context.Context, email string) error
	MarkVerified(ctx context.Context, email string, ttl time.Duration) error
	IsVerified(ctx context.Context, email string) (bool, error)
}

// Service issues and verifies one-time passcodes for chat admission.
type Service struct {
	store       PasscodeStore
	sender      email.Sender
	clock       clockwork.Clock
	codeTTL     time.Duration
	verifiedTTL time.Duration

	generateCode func() (string, error)
}

func NewService(store PasscodeStore, sender email.Sender, clock clockwork.Clock, codeTTL, verifiedTTL time.Duration) *Service {
	return &Service{
		store:        store,
		sender:       sender,
		clock:        clock,
		codeTTL:      codeTTL,
		verifiedTTL:  verifiedTTL,
		generateCode: randomCode,
	}
}

// Issue generates a fresh passcode for the address, stores its hash, and
// emails the plain code. While an unexpired code exists for the address,
// Issue refuses with domain.ErrPasscodeStillLive.
func (s *Service) Issue(ctx context.Context, address string) error {
	code, err := s.generateCode()
	if err != nil {
		return fmt.Errorf("generating passcode: %w", err)
	}

	if err := s.store.SavePasscode(ctx, address, hashCode(code), s.codeTTL); err != nil {
		return err
	}

	expiresAt := s.clock.Now().Add(s.codeTTL)
	subject := "Your chat access code"
	body := fmt.Sprintf(
		"<p>Your access code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>",
		code, int(s.codeTTL.Minutes()),
	)

	if err := s.sender.Send(ctx, address, subject, body); err != nil {
		// Free the slot so the user is not locked out until the TTL runs down.
		if delErr := s.store.DeletePasscode(ctx, address); delErr != nil {
			slog.Warn("failed to discard passcode after send failure", "error", delErr)
		}
		return fmt.Errorf("sending passcode email: %w", err)
	}

	metrics.PasscodesIssued.Inc()
	slog.Info("passcode issued", "expires_at", expiresAt)
	return nil
}

// Verify checks the submitted code against the stored hash. On success the
// code is consumed and the address is marked verified for the session window.
// Failures return domain.ErrPasscodeNotFound or domain.ErrPasscodeMismatch.
func (s *Service) Verify(ctx context.Context, address, code string) error {
	storedHash, err := s.store.GetPasscode(ctx, address)
	if err != nil {
		if errors.Is(err, domain.ErrPasscodeNotFound) {
			metrics.PasscodeVerifications.WithLabelValues("not_found").Inc()
		}
		return err
	}

	if subtle.ConstantTimeCompare([]byte(storedHash), []byte(hashCode(code))) != 1 {
		metrics.PasscodeVerifications.WithLabelValues("mismatch").Inc()
		return domain.ErrPasscodeMismatch
	}

	if err := s.store.DeletePasscode(ctx, address); err != nil {
		return fmt.Errorf("consuming passcode: %w", err)
	}
	if err := s.store.MarkVerified(ctx, address, s.verifiedTTL); err != nil {
		return fmt.Errorf("marking address verified: %w", err)
	}

	metrics.PasscodeVerifications.WithLabelValues("success").Inc()
	slog.Info("passcode verified")
	return nil
}

// IsSessionAuthorized reports whether the address holds a live verified
// marker from an earlier successful Verify.
func (s *Service) IsSessionAuthorized(ctx context.Context, address string) (bool, error) {
	return s.store.IsVerified(ctx, address)
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
