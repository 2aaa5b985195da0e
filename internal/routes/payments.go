package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mamapay/ledgerwallet/internal/payment"
)

// RegisterPaymentRoutes wires transfer, credit and debit endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payment.Handler) {
	r.Post("/payments", h.Pay)
	r.Post("/credits", h.Credit)
	r.Post("/debits", h.Debit)
}
