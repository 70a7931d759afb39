package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/paywave/paywave/internal/paycode"
)

// RegisterCodeRoutes wires payment-code endpoints. Redemption additionally
// passes the per-caller rate limiter.
func RegisterCodeRoutes(r fiber.Router, h *paycode.Handler, redeemLimit fiber.Handler) {
	r.Post("/codes", h.Create)
	r.Get("/codes/history/me", h.History)
	r.Get("/codes/:codeId", h.Fetch)
	r.Post("/codes/:codeId/redeem", redeemLimit, h.Redeem)
}
