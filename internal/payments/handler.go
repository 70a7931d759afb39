package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/paywave/paywave/internal/apperr"
	"github.com/paywave/paywave/internal/ledger"
	"github.com/paywave/paywave/internal/middleware"
)

// Handler exposes deposit, transfer and history endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payments handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type depositRequest struct {
	Amount      int64  `json:"amount"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

type transferRequest struct {
	ReceiverID  string `json:"receiver_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// Deposit adds money to the caller's account.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest(apperr.CodeValidation, "malformed request body")
	}

	result, err := h.service.Deposit(c.UserContext(), DepositInput{
		AccountID:   middleware.CallerID(c),
		Amount:      req.Amount,
		Method:      req.Method,
		Description: req.Description,
	})
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": result.Transaction.ID,
		"new_balance":    result.NewBalance,
	})
}

// Transfer moves money from the caller to another account.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest(apperr.CodeValidation, "malformed request body")
	}

	result, err := h.service.Transfer(c.UserContext(), TransferInput{
		SenderID:    middleware.CallerID(c),
		ReceiverID:  req.ReceiverID,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": result.Transaction.ID,
		"new_balance":    result.NewBalance,
	})
}

// History lists the caller's transactions, newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	records, err := h.service.History(c.UserContext(), middleware.CallerID(c))
	if err != nil {
		return mapError(err)
	}

	out := make([]fiber.Map, 0, len(records))
	for _, t := range records {
		entry := fiber.Map{
			"transaction_id": t.ID,
			"kind":           t.Kind,
			"amount":         t.Amount,
			"description":    t.Description,
			"status":         t.Status,
			"created_at":     t.CreatedAt,
		}
		if t.SenderID != "" {
			entry["sender_id"] = t.SenderID
		}
		if t.ReceiverID != "" {
			entry["receiver_id"] = t.ReceiverID
		}
		if t.Method != "" {
			entry["method"] = t.Method
		}
		out = append(out, entry)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidMethod), errors.Is(err, ErrDescriptionRequired):
		return apperr.BadRequest(apperr.CodeValidation, err.Error())
	case errors.Is(err, ErrDepositCeiling):
		return apperr.BadRequest(apperr.CodeLimitExceeded, err.Error())
	case errors.Is(err, ErrSelfTransfer):
		return apperr.BadRequest(apperr.CodeSelfTransfer, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return apperr.BadRequest(apperr.CodeInsufficientFunds, "insufficient balance")
	case errors.Is(err, ledger.ErrAccountNotFound):
		return apperr.NotFound("account not found")
	case errors.Is(err, ledger.ErrStoreUnavailable):
		return apperr.Unavailable()
	default:
		return err
	}
}
