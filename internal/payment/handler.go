package payment

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mamapay/ledgerwallet/internal/directory"
	"github.com/mamapay/ledgerwallet/internal/ledger"
	"github.com/mamapay/ledgerwallet/internal/vault"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type payRequest struct {
	Amount    string `json:"amount"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Memo      string `json:"memo"`
}

type creditRequest struct {
	Amount   string `json:"amount"`
	Username string `json:"username"`
}

// Pay processes a user-to-user transfer.
func (h *Handler) Pay(c *fiber.Ctx) error {
	var req payRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	receipt, err := h.service.Pay(c.UserContext(), req.Amount, req.Sender, req.Recipient, req.Memo)
	if err != nil {
		return mapError(err)
	}

	memo := any(receipt.Memo)
	if receipt.Memo == "" {
		memo = nil
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"id": receipt.ID, "memo": memo})
}

// Credit issues asset to a user from the bank.
func (h *Handler) Credit(c *fiber.Ctx) error {
	var req creditRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	receipt, err := h.service.Credit(c.UserContext(), req.Amount, req.Username)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"id": receipt.ID})
}

// Debit returns asset from a user to the issuer.
func (h *Handler) Debit(c *fiber.Ctx) error {
	var req creditRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	receipt, err := h.service.Debit(c.UserContext(), req.Amount, req.Username)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"id": receipt.ID})
}

// mapError translates orchestration failures, keeping ledger result codes
// visible to the caller.
func mapError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrMalformedAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound):
		return fiber.NewError(http.StatusConflict, "account not provisioned on ledger")
	case errors.Is(err, vault.ErrKeyMaterial):
		return fiber.NewError(http.StatusInternalServerError, "cannot decrypt signing key")
	default:
		if rejected, ok := ledger.AsRejected(err); ok {
			return fiber.NewError(http.StatusBadRequest, rejected.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
