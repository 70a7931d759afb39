package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/paywave/paywave/internal/apperr"
	"github.com/paywave/paywave/internal/directory"
	"github.com/paywave/paywave/internal/ledger"
	"github.com/paywave/paywave/internal/middleware"
)

// RegisterAccountRoutes wires the thin account endpoints backed directly by
// the directory collaborator and the ledger.
func RegisterAccountRoutes(r fiber.Router, dir directory.Directory, l ledger.Ledger) {
	// Pre-transfer verification: resolve a receiver's display name. Verifying
	// yourself is rejected up front, matching the self-transfer rule.
	r.Get("/accounts/:accountId/verify", func(c *fiber.Ctx) error {
		accountID := c.Params("accountId")
		if accountID == middleware.CallerID(c) {
			return apperr.BadRequest(apperr.CodeSelfTransfer, "cannot transfer to your own account")
		}
		account, err := dir.Account(c.UserContext(), accountID)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				return apperr.NotFound("account not found")
			}
			return apperr.Unavailable()
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"id":           account.ID,
			"display_name": account.DisplayName,
		})
	})

	r.Get("/accounts/me/balance", func(c *fiber.Ctx) error {
		balance, err := l.Balance(c.UserContext(), middleware.CallerID(c))
		if err != nil {
			if errors.Is(err, ledger.ErrAccountNotFound) {
				return apperr.NotFound("account not found")
			}
			return apperr.Unavailable()
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"balance": balance})
	})
}
