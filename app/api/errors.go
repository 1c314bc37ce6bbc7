package api

import (
	"errors"
	"fmt"
	"log/slog"

	"askpdf/types"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler translates errors into JSON responses. Known sentinel errors
// carry their own status and an actionable message; everything else gets a
// generic notice so provider internals never leak to clients.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if apiErr, ok := err.(Error); ok {
		return c.Status(apiErr.Code).JSON(apiErr)
	}
	if valErr, ok := err.(ValidationError); ok {
		return c.Status(valErr.Status).JSON(valErr)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	apiErr := mapSentinel(err)
	slog.Error("request failed", "path", c.Path(), "code", apiErr.Code, "error", err)
	return c.Status(apiErr.Code).JSON(apiErr)
}

func mapSentinel(err error) Error {
	switch {
	case errors.Is(err, types.ErrUsageLimit):
		return NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, types.ErrModelConfiguration):
		return NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNotFound):
		return NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrIngestion):
		return NewError(fiber.StatusInternalServerError, "document ingestion failed")
	case errors.Is(err, types.ErrRetrieval):
		return NewError(fiber.StatusInternalServerError, "document retrieval failed")
	case errors.Is(err, types.ErrGeneration):
		return NewError(fiber.StatusInternalServerError, "answer generation failed")
	default:
		return NewError(fiber.StatusInternalServerError, "internal server error")
	}
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Error implements the error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}

func ErrUnAuthorized(msg string) Error {
	return Error{
		Code:    fiber.StatusUnauthorized,
		Message: msg,
	}
}

func ErrNotFound[T any](arg T, resource string) Error {
	return Error{
		Code:    fiber.StatusNotFound,
		Message: fmt.Sprintf("%s with %v not found", resource, arg),
	}
}
