package middlewares

import (
	"errors"
	"log/slog"

	"github.com/datavault/datavault/internal/handlers/api"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the terminal error translator: anything a handler did not
// map itself becomes a JSON error envelope.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("Unhandled error", "path", ctx.Path(), "code", code, "error", err)
		message = "Internal server error"
	}
	return ctx.Status(code).JSON(api.NewErrorResponse(code, message))
}
