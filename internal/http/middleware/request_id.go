package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDLocal  = "request_id"
)

// RequestID generates a unique request ID for each request
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(RequestIDHeader)
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Set(RequestIDHeader, rid)
		c.Locals(requestIDLocal, rid)
		return c.Next()
	}
}

// RequestIDFrom returns the ID assigned by RequestID, or "".
func RequestIDFrom(c *fiber.Ctx) string {
	rid, _ := c.Locals(requestIDLocal).(string)
	return rid
}
