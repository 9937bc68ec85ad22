package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Logesh0108/secure-chat-backend/internal/chat"
	"github.com/Logesh0108/secure-chat-backend/internal/config"
	"github.com/Logesh0108/secure-chat-backend/internal/email"
	"github.com/Logesh0108/secure-chat-backend/internal/logging"
	"github.com/Logesh0108/secure-chat-backend/internal/otp"
	"github.com/Logesh0108/secure-chat-backend/internal/redis"
	"github.com/Logesh0108/secure-chat-backend/internal/server"
	"github.com/Logesh0108/secure-chat-backend/internal/version"
)

func setupConfig() *config.Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, registry *chat.Registry) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		registry.CloseAll("server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	sender, err := email.NewSender(cfg)
	if err != nil {
		slog.Error("Failed to create email sender", "error", err)
		os.Exit(1)
	}

	passcodeStore := redis.NewPasscodeStore(redisClient)
	gate := otp.NewService(passcodeStore, sender, clock, cfg.PasscodeTTL, cfg.VerifiedTTL)

	store := chat.NewStore()
	registry := chat.NewRegistry()
	broadcaster := chat.NewBroadcaster(registry)

	srv := server.NewServer(cfg, store, registry, broadcaster, gate, redisClient, clock)

	done := runGracefulShutdown(srv, registry)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
