package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sifan077/SafeURL/internal/app/service"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger   *zap.Logger
	Resolver service.RedirectResolver
	// CacheMaxAge is advertised to clients and matches the server-side cache TTL.
	CacheMaxAge time.Duration
}

// RedirectHandler resolves short codes and issues redirects.
type RedirectHandler struct {
	logger       *zap.Logger
	resolver     service.RedirectResolver
	cacheControl string
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAge := deps.CacheMaxAge
	if maxAge <= 0 {
		maxAge = service.DefaultCacheTTL
	}
	return &RedirectHandler{
		logger:       logger,
		resolver:     deps.Resolver,
		cacheControl: fmt.Sprintf("max-age=%d, public", int(maxAge.Seconds())),
	}
}

// Register wires redirect routes onto the provided router. It must be
// registered last because /:code? matches the root and any single path segment.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/:code?", h.Resolve)
}

// Resolve handles GET /:code.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := utils.CopyString(c.Params("code"))
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing link code",
		})
	}

	target, err := h.resolver.Resolve(c.UserContext(), code)
	if err != nil {
		var inv *service.InvalidatedError
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing link code",
			})
		case errors.Is(err, service.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "short link not found",
			})
		case errors.As(err, &inv):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "The original URL is no longer valid: " + inv.Reason,
			})
		default:
			h.logger.Error("failed to resolve link", zap.Error(err), zap.String("code", code))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", target))
	c.Set(fiber.HeaderCacheControl, h.cacheControl)
	c.Set(fiber.HeaderLocation, target)
	return c.Status(fiber.StatusFound).SendString("Redirecting...")
}
