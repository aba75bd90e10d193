package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sifan077/SafeURL/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	Creator     service.LinkCreator
	LinkService service.LinkService
	BaseURL     string
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger      *zap.Logger
	creator     service.LinkCreator
	linkService service.LinkService
	baseURL     string
	validate    *validator.Validate
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		creator:     deps.Creator,
		linkService: deps.LinkService,
		baseURL:     strings.TrimRight(deps.BaseURL, "/"),
		validate:    validator.New(),
	}
}

// Register wires API routes onto the provided router. createGuards run in
// front of the create endpoint only.
func (h *APIHandler) Register(router fiber.Router, createGuards ...fiber.Handler) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Post("/", append(createGuards, h.CreateLink)...)
			links.Get("/:code", h.GetLink)
		}
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}

// CreateLinkResponse represents the response for creating a link.
type CreateLinkResponse struct {
	ShortCode string `json:"shortCode"`
	LongURL   string `json:"longUrl"`
	ShortURL  string `json:"shortUrl"`
}

// LinkResponse describes a stored link.
type LinkResponse struct {
	Code       string    `json:"code"`
	URL        string    `json:"url"`
	ClickCount int64     `json:"clickCount"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": requestErrorMessage(err),
		})
	}

	link, err := h.creator.Create(c.UserContext(), req.URL)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "url is required",
			})
		case errors.As(err, &verr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":  "Invalid URL",
				"reason": verr.Reason,
			})
		case errors.Is(err, service.ErrExhaustedRetries):
			h.logger.Error("short code space exhausted", zap.Error(err))
			return c.Status(fiber.StatusInsufficientStorage).JSON(fiber.Map{
				"error": "could not allocate a short code, try again later",
			})
		default:
			h.logger.Error("failed to create link", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create link",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(CreateLinkResponse{
		ShortCode: link.Code,
		LongURL:   link.URL,
		ShortURL:  h.baseURL + "/" + link.Code,
	})
}

// GetLink handles GET /api/links/:code
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	code := utils.CopyString(c.Params("code"))
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code is required",
		})
	}

	link, err := h.linkService.GetLink(c.UserContext(), code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to get link", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(LinkResponse{
		Code:       link.Code,
		URL:        link.URL,
		ClickCount: link.ClickCount,
		CreatedAt:  link.CreatedAt,
		ExpiresAt:  link.ExpiresAt,
	})
}

func requestErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
