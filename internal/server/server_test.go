package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Logesh0108/secure-chat-backend/internal/chat"
	"github.com/Logesh0108/secure-chat-backend/internal/config"
	"github.com/Logesh0108/secure-chat-backend/internal/domain"
	"github.com/Logesh0108/secure-chat-backend/internal/otp"
)

// fakePasscodeStore is an in-memory stand-in for the redis-backed store. TTLs
// are accepted but not enforced; handler tests never wait them out.
type fakePasscodeStore struct {
	mu       sync.Mutex
	codes    map[string]string
	verified map[string]bool
}

func newFakePasscodeStore() *fakePasscodeStore {
	return &fakePasscodeStore{
		codes:    make(map[string]string),
		verified: make(map[string]bool),
	}
}

func (f *fakePasscodeStore) SavePasscode(_ context.Context, email, codeHash string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.codes[email]; ok {
		return domain.ErrPasscodeStillLive
	}
	f.codes[email] = codeHash
	return nil
}

func (f *fakePasscodeStore) GetPasscode(_ context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, ok := f.codes[email]
	if !ok {
		return "", domain.ErrPasscodeNotFound
	}
	return hash, nil
}

func (f *fakePasscodeStore) DeletePasscode(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.codes, email)
	return nil
}

func (f *fakePasscodeStore) MarkVerified(_ context.Context, email string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified[email] = true
	return nil
}

func (f *fakePasscodeStore) IsVerified(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verified[email], nil
}

// captureSender records sent emails instead of delivering them.
type captureSender struct {
	mu   sync.Mutex
	sent []capturedEmail
}

type capturedEmail struct {
	to   string
	body string
}

func (c *captureSender) Send(_ context.Context, to, _, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, capturedEmail{to: to, body: body})
	return nil
}

func (c *captureSender) lastBody() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1].body
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:            "test",
		Port:              "0",
		SessionSecret:     "test-secret-0123456789abcdef",
		PasscodeTTL:       4 * time.Minute,
		VerifiedTTL:       24 * time.Hour,
		AllowedOrigins:    []string{"*"},
		MaxConnections:    100,
		MaxConnsPerIP:     100,
		ConnectionsPerSec: 1000,
		ConnectionBurst:   1000,
	}
}

// newTestServer wires a full server over in-memory collaborators. The redis
// client points at a closed port; only the readiness probe touches it.
func newTestServer(t *testing.T, cfg *config.Config) (*Server, *captureSender) {
	t.Helper()

	clock := clockwork.NewRealClock()
	store := chat.NewStore()
	registry := chat.NewRegistry()
	broadcaster := chat.NewBroadcaster(registry)

	sender := &captureSender{}
	gate := otp.NewService(newFakePasscodeStore(), sender, clock, cfg.PasscodeTTL, cfg.VerifiedTTL)

	redisClient := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() {
		_ = redisClient.Close()
		registry.CloseAll("test teardown")
	})

	srv := NewServer(cfg, store, registry, broadcaster, gate, redisClient, clock)
	return srv, sender
}
