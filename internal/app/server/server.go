package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/SafeURL/internal/app/service"
	inthttp "github.com/sifan077/SafeURL/internal/http/handler"
	"github.com/sifan077/SafeURL/internal/http/middleware"
	"go.uber.org/zap"
)

// Dependencies bundles what the HTTP server needs. Postgres and Redis are
// only used for readiness checks and rate limiting; a nil Redis disables both.
type Dependencies struct {
	Logger   *zap.Logger
	Postgres *pgxpool.Pool
	Redis    *redis.Client

	Creator     service.LinkCreator
	Resolver    service.RedirectResolver
	LinkService service.LinkService

	BaseURL     string
	CacheMaxAge time.Duration
	RateLimit   middleware.RateLimitConfig
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with all routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "SafeURL",
		DisableStartupMessage: true,
		// Values from c.Params and friends outlive the request in background tasks.
		Immutable:             true,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Use(
		middleware.RequestID(),
		middleware.Logger(s.deps.Logger),
		middleware.Recovery(s.deps.Logger),
		middleware.CORS(),
	)

	healthHandler := inthttp.NewHealthHandler(inthttp.HealthDeps{
		Logger: s.deps.Logger,
		Store:  s.storePing(),
		Cache:  s.cachePing(),
	})
	healthHandler.Register(s.app)

	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      s.deps.Logger,
		Creator:     s.deps.Creator,
		LinkService: s.deps.LinkService,
		BaseURL:     s.deps.BaseURL,
	})
	apiHandler.Register(s.app, middleware.RateLimit(s.deps.Redis, s.deps.RateLimit, s.deps.Logger))

	// Registered last: /:code? matches the root and every single-segment path.
	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:      s.deps.Logger,
		Resolver:    s.deps.Resolver,
		CacheMaxAge: s.deps.CacheMaxAge,
	})
	redirectHandler.Register(s.app)
}

func (s *Server) storePing() inthttp.PingFunc {
	if s.deps.Postgres == nil {
		return nil
	}
	return s.deps.Postgres.Ping
}

func (s *Server) cachePing() inthttp.PingFunc {
	if s.deps.Redis == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return s.deps.Redis.Ping(ctx).Err()
	}
}
