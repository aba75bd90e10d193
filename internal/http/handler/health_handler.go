package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const defaultPingTimeout = 2 * time.Second

var errNoCheck = errors.New("no readiness check configured")

// PingFunc reports whether a dependency is reachable.
type PingFunc func(ctx context.Context) error

// HealthDeps groups dependencies required by health handlers. A nil Cache
// ping means the service runs without a cache.
type HealthDeps struct {
	Logger      *zap.Logger
	Store       PingFunc
	Cache       PingFunc
	PingTimeout time.Duration
}

// HealthHandler exposes liveness and readiness checks.
type HealthHandler struct {
	logger  *zap.Logger
	store   PingFunc
	cache   PingFunc
	timeout time.Duration
}

// NewHealthHandler creates a health handler with the provided dependencies.
func NewHealthHandler(deps HealthDeps) *HealthHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	return &HealthHandler{
		logger:  logger,
		store:   deps.Store,
		cache:   deps.Cache,
		timeout: timeout,
	}
}

// Register wires health routes onto the provided router.
func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
}

// Health is a liveness check so we know the service is running.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "SafeURL",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready reports 503 when the store is unreachable. A missing or failing cache
// only degrades the service.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	checks := fiber.Map{}
	status := "ok"
	code := fiber.StatusOK

	if err := ping(ctx, h.store); err != nil {
		h.logger.Warn("store readiness check failed", zap.Error(err))
		checks["store"] = "down"
		status = "unavailable"
		code = fiber.StatusServiceUnavailable
	} else {
		checks["store"] = "up"
	}

	switch {
	case h.cache == nil:
		checks["cache"] = "disabled"
		if code == fiber.StatusOK {
			status = "degraded"
		}
	case ping(ctx, h.cache) != nil:
		h.logger.Warn("cache readiness check failed")
		checks["cache"] = "down"
		if code == fiber.StatusOK {
			status = "degraded"
		}
	default:
		checks["cache"] = "up"
	}

	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}

func ping(ctx context.Context, fn PingFunc) error {
	if fn == nil {
		return errNoCheck
	}
	return fn(ctx)
}
