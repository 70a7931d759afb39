package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/paywave/paywave/internal/apperr"
)

const (
	accountIDHeader = "X-Account-ID"
	callerLocalKey  = "account_id"
)

// CallerIdentity extracts the already-authenticated account identity set by
// the upstream auth gateway. The core never validates credentials or manages
// sessions itself; it only requires a well-formed identity.
func CallerIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(accountIDHeader)
		if id == "" {
			return apperr.New(http.StatusUnauthorized, apperr.CodeUnauthorized, "missing caller identity")
		}
		if _, err := uuid.Parse(id); err != nil {
			return apperr.New(http.StatusUnauthorized, apperr.CodeUnauthorized, "invalid caller identity")
		}
		c.Locals(callerLocalKey, id)
		return c.Next()
	}
}

// CallerID returns the authenticated account id for the request, or empty.
func CallerID(c *fiber.Ctx) string {
	id, _ := c.Locals(callerLocalKey).(string)
	return id
}
