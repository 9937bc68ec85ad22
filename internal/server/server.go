package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Logesh0108/secure-chat-backend/internal/chat"
	"github.com/Logesh0108/secure-chat-backend/internal/config"
	apperrors "github.com/Logesh0108/secure-chat-backend/internal/errors"
	"github.com/Logesh0108/secure-chat-backend/internal/logging"
	"github.com/Logesh0108/secure-chat-backend/internal/otp"
)

const sessionMaxAgeDays = 7

// correlationMiddleware stamps every request context with a correlation ID
// so log lines emitted while serving it can be tied together.
func correlationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := logging.WithCorrelationID(req.Context(), logging.NewCorrelationID())
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	store        *chat.Store
	registry     *chat.Registry
	broadcaster  *chat.Broadcaster
	gate         *otp.Service
	redisClient  *goredis.Client
	sessionStore *sessions.CookieStore
	limits       *ConnectionLimits
	clock        clockwork.Clock
	startTime    time.Time
}

func NewServer(
	cfg *config.Config,
	store *chat.Store,
	registry *chat.Registry,
	broadcaster *chat.Broadcaster,
	gate *otp.Service,
	redisClient *goredis.Client,
	clock clockwork.Clock,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(correlationMiddleware())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowCredentials: true,
	}))
	e.Use(apperrors.Middleware())

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * sessionMaxAgeDays,
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		store:        store,
		registry:     registry,
		broadcaster:  broadcaster,
		gate:         gate,
		redisClient:  redisClient,
		sessionStore: sessionStore,
		limits:       NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnsPerIP, cfg.ConnectionsPerSec, cfg.ConnectionBurst, clock),
		clock:        clock,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
