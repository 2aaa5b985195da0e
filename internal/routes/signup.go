package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mamapay/ledgerwallet/internal/provision"
)

// RegisterSignupRoutes wires signup and provisioning-status endpoints.
func RegisterSignupRoutes(r fiber.Router, h *provision.Handler) {
	r.Post("/signup", h.Signup)
	r.Get("/users/:username/provisioning", h.Status)
}
