package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Logesh0108/secure-chat-backend/internal/domain"
)

const (
	passcodeKeyPrefix = "otp:code:"
	verifiedKeyPrefix = "otp:verified:"
)

// PasscodeStore holds hashed one-time passcodes and verified-email markers.
type PasscodeStore struct {
	rdb *redis.Client
}

func NewPasscodeStore(rdb *redis.Client) *PasscodeStore {
	return &PasscodeStore{rdb: rdb}
}

// SavePasscode stores the passcode hash for email with the given TTL.
// Returns domain.ErrPasscodeStillLive if an unexpired code already exists;
// the caller must not issue a fresh code while one is outstanding.
func (s *PasscodeStore) SavePasscode(ctx context.Context, email, hash string, ttl time.Duration) error {
	ok, err := s.rdb.SetNX(ctx, passcodeKeyPrefix+email, hash, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save passcode: %w", err)
	}
	if !ok {
		return domain.ErrPasscodeStillLive
	}
	return nil
}

// GetPasscode returns the stored passcode hash for email, or
// domain.ErrPasscodeNotFound if none exists (never issued, consumed, or
// expired; Redis does not distinguish, and neither does the caller).
func (s *PasscodeStore) GetPasscode(ctx context.Context, email string) (string, error) {
	hash, err := s.rdb.Get(ctx, passcodeKeyPrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrPasscodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get passcode: %w", err)
	}
	return hash, nil
}

// DeletePasscode consumes the code for email. Deleting an absent code is
// not an error.
func (s *PasscodeStore) DeletePasscode(ctx context.Context, email string) error {
	if err := s.rdb.Del(ctx, passcodeKeyPrefix+email).Err(); err != nil {
		return fmt.Errorf("failed to delete passcode: %w", err)
	}
	return nil
}

// MarkVerified records that email passed the admission gate, for ttl.
func (s *PasscodeStore) MarkVerified(ctx context.Context, email string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, verifiedKeyPrefix+email, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark verified: %w", err)
	}
	return nil
}

// IsVerified reports whether email currently holds a verified marker.
func (s *PasscodeStore) IsVerified(ctx context.Context, email string) (bool, error) {
	n, err := s.rdb.Exists(ctx, verifiedKeyPrefix+email).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check verified marker: %w", err)
	}
	return n > 0, nil
}
