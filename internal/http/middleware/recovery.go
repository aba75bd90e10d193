package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Recovery recovers from panics and logs the error
func Recovery(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				perr := fmt.Errorf("panic recovered: %v", r)

				fields := []zap.Field{
					zap.Error(perr),
					zap.ByteString("stack", stack),
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
				}
				if rid := RequestIDFrom(c); rid != "" {
					fields = append(fields, zap.String("request_id", rid))
				}

				logger.Error("panic recovered", fields...)

				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Internal Server Error",
				})
			}
		}()

		return c.Next()
	}
}
