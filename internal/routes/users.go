package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mamapay/ledgerwallet/internal/directory"
)

// RegisterUserRoutes wires directory lookup endpoints.
func RegisterUserRoutes(r fiber.Router, dir directory.Repository) {
	r.Get("/users", func(c *fiber.Ctx) error {
		records, err := dir.List(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		out := make([]fiber.Map, 0, len(records))
		for _, record := range records {
			out = append(out, recordJSON(record))
		}
		return c.JSON(out)
	})

	r.Get("/users/:username", func(c *fiber.Ctx) error {
		record, err := dir.FindByUsername(c.UserContext(), c.Params("username"))
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				return fiber.NewError(http.StatusNotFound, "user not found")
			}
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(recordJSON(record))
	})
}

func recordJSON(record directory.Record) fiber.Map {
	return fiber.Map{
		"id":             record.ID,
		"username":       record.Username,
		"public_key":     record.PublicKey,
		"encrypted_seed": record.EncryptedSeed,
		"created_at":     record.CreatedAt,
	}
}
