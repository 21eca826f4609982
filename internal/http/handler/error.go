package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"pinworld/internal/apperror"
	"pinworld/internal/http/middleware"
)

// errorPayload defines the relay-local error response body.
type errorPayload struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// writeError writes a relay-local JSON error. message must be safe to show
// to the browser.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		Error:     message,
		Code:      code,
		RequestID: middleware.RequestIDFrom(c),
	})
}

// statusFor maps the error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	var appErr *apperror.AppError
	code := "RELAY_ERROR"
	if errors.As(err, &appErr) && appErr.Code != "" {
		code = appErr.Code
	}

	switch {
	case errors.Is(err, apperror.ErrValidation):
		return fiber.StatusBadRequest, code
	case errors.Is(err, apperror.ErrForbidden):
		return fiber.StatusForbidden, code
	case errors.Is(err, apperror.ErrMethodNotAllowed):
		return fiber.StatusMethodNotAllowed, code
	default:
		return fiber.StatusInternalServerError, code
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error
// responses. It also answers failures raised before any route runs, such as
// an oversized body, so it sets the CORS headers itself for allowed origins.
func ErrorHandler(allowedOrigins ...string) fiber.ErrorHandler {
	origins := originSet(allowedOrigins)
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		origin := c.Get(fiber.HeaderOrigin)
		if originAllowed(origins, origin) && len(c.Response().Header.Peek(fiber.HeaderAccessControlAllowOrigin)) == 0 {
			setCORS(c, origin)
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
