package provision

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mamapay/ledgerwallet/internal/directory"
)

// Handler exposes signup and provisioning-status endpoints.
type Handler struct {
	svc    *Service
	runner *Runner
	status StatusStore
}

// NewHandler constructs a provisioning handler. A nil runner selects inline
// mode: signup blocks on the full ledger workflow.
func NewHandler(svc *Service, runner *Runner, status StatusStore) *Handler {
	return &Handler{svc: svc, runner: runner, status: status}
}

type signupRequest struct {
	Username string `json:"username"`
}

// Signup creates the identity record and either enqueues or runs the ledger
// workflow. The response always distinguishes "record created" from
// "ledger-provisioned".
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	record, err := h.svc.Signup(c.UserContext(), req.Username)
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrUsernameTaken):
			return fiber.NewError(http.StatusConflict, "username already taken")
		case req.Username == "":
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	if h.runner != nil {
		h.runner.Enqueue(record.Username)
	} else {
		// Inline mode. The record exists either way; the provisioning field
		// below reports a step failure instead of pretending the account is
		// live, so the error itself is not resurfaced as a signup failure.
		_ = h.svc.Provision(c.UserContext(), record.Username)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":           record.ID,
		"username":     record.Username,
		"public_key":   record.PublicKey,
		"provisioning": h.currentStatus(c, record.Username),
	})
}

// Status reports the provisioning outcome for a username.
func (h *Handler) Status(c *fiber.Ctx) error {
	username := c.Params("username")
	status, err := h.status.Get(c.UserContext(), username)
	if err != nil {
		if errors.Is(err, ErrStatusUnknown) {
			return fiber.NewError(http.StatusNotFound, "no provisioning status for user")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(status)
}

func (h *Handler) currentStatus(c *fiber.Ctx, username string) Status {
	status, err := h.status.Get(c.UserContext(), username)
	if err != nil {
		return Status{State: StatePending}
	}
	return status
}
