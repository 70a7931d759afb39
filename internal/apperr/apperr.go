// Package apperr maps domain failures to the stable error codes exposed at
// the API boundary. Handlers translate sentinel errors into an *Error; the
// server's fiber ErrorHandler renders it, so no storage detail ever leaks.
package apperr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Stable error codes. Clients key retry and correction logic off these, so
// they never change even if messages do.
const (
	CodeValidation        = "validation_error"
	CodeNotFound          = "not_found"
	CodeInsufficientFunds = "insufficient_funds"
	CodeSelfPayment       = "self_payment"
	CodeSelfTransfer      = "self_transfer"
	CodeExpired           = "code_expired"
	CodeNotRedeemable     = "code_not_redeemable"
	CodeLimitExceeded     = "limit_exceeded"
	CodeStoreUnavailable  = "store_unavailable"
	CodeRateLimited       = "rate_limited"
	CodeUnauthorized      = "unauthorized"
	CodeInternal          = "internal_error"
)

// Error carries an HTTP status, a stable code and a human-readable message.
type Error struct {
	Status  int
	Code    string
	Message string
}

// New builds an API error.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// BadRequest is a 400 with the given code.
func BadRequest(code, message string) *Error {
	return New(http.StatusBadRequest, code, message)
}

// NotFound is a 404.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, CodeNotFound, message)
}

// Unavailable is the retryable 503 for transient store failures.
func Unavailable() *Error {
	return New(http.StatusServiceUnavailable, CodeStoreUnavailable, "service temporarily unavailable, retry shortly")
}

// ErrorHandler renders every failure as {success, code, message}. Domain
// failures carry their stable code; anything unexpected collapses to
// internal_error so storage detail never crosses the boundary.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			return c.Status(apiErr.Status).JSON(fiber.Map{
				"success": false,
				"code":    apiErr.Code,
				"message": apiErr.Message,
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code := CodeValidation
			switch fiberErr.Code {
			case http.StatusNotFound:
				code = CodeNotFound
			case http.StatusConflict:
				code = CodeNotRedeemable
			case http.StatusServiceUnavailable:
				code = CodeStoreUnavailable
			case http.StatusInternalServerError:
				code = CodeInternal
			}
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"success": false,
				"code":    code,
				"message": fiberErr.Message,
			})
		}

		logger.Error("unhandled request error", "path", c.Path(), "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"code":    CodeInternal,
			"message": "internal error",
		})
	}
}
