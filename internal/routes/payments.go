package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/paywave/paywave/internal/payments"
)

// RegisterPaymentRoutes wires deposit, transfer and history endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/transactions/deposit", h.Deposit)
	r.Post("/transactions/transfer", h.Transfer)
	r.Get("/transactions", h.History)
}
