package httpapi

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/example/compliance/internal/ports/primary"
)

type errorBody struct {
	Code    int               `json:"code"`
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// statusFor maps an application error onto an HTTP status code.
func statusFor(err error) int {
	var (
		fiberErr    *fiber.Error
		invalid     *primary.InvalidStateError
		conflict    *primary.PersistenceConflictError
		fetch       *primary.FactFetchError
		validations validator.ValidationErrors
	)
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validations), errors.Is(err, primary.ErrInvalidRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, primary.ErrEnrollmentNotFound), errors.Is(err, primary.ErrNoRuns):
		return fiber.StatusNotFound
	case errors.As(err, &invalid), errors.As(err, &conflict):
		return fiber.StatusConflict
	case errors.Is(err, primary.ErrRunInProgress):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &fetch):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// errorHandler is the single place where handler errors become responses.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFor(err)
		body := errorBody{Code: code, Status: "error", Message: err.Error()}

		var validations validator.ValidationErrors
		if errors.As(err, &validations) {
			body.Message = "validation failed"
			body.Errors = make(map[string]string, len(validations))
			for _, fe := range validations {
				body.Errors[fe.Field()] = fe.Tag()
			}
		}

		if code >= fiber.StatusInternalServerError && code != fiber.StatusServiceUnavailable {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "status", code, "error", err)
			if code == fiber.StatusInternalServerError {
				body.Message = "internal server error"
			}
		}

		return c.Status(code).JSON(body)
	}
}
