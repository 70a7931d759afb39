package paycode

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/paywave/paywave/internal/apperr"
	"github.com/paywave/paywave/internal/directory"
	"github.com/paywave/paywave/internal/ledger"
	"github.com/paywave/paywave/internal/middleware"
)

// Handler exposes payment-code HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment-code handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type codeResponse struct {
	CodeID      string    `json:"code_id"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Create issues a new payment code for the authenticated payee.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest(apperr.CodeValidation, "malformed request body")
	}

	code, err := h.service.Create(c.UserContext(), CreateInput{
		PayeeID:     middleware.CallerID(c),
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusCreated).JSON(codeResponse{
		CodeID:      code.ID,
		Amount:      code.Amount,
		Description: code.Description,
		Status:      code.Status,
		ExpiresAt:   code.ExpiresAt,
	})
}

// Fetch returns code details with the payee's display name, for the scanner UI.
func (h *Handler) Fetch(c *fiber.Ctx) error {
	details, err := h.service.Fetch(c.UserContext(), c.Params("codeId"))
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"code_id":     details.Code.ID,
		"amount":      details.Code.Amount,
		"description": details.Code.Description,
		"payee_name":  details.PayeeName,
		"expires_at":  details.Code.ExpiresAt,
	})
}

// Redeem pays the code from the authenticated caller's balance.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	result, err := h.service.Redeem(c.UserContext(), RedeemInput{
		CodeID:  c.Params("codeId"),
		PayerID: middleware.CallerID(c),
	})
	if err != nil {
		return mapError(err)
	}

	resp := fiber.Map{
		"transaction_id": result.Transaction.ID,
		"amount":         result.Transaction.Amount,
	}
	// Omitted rather than reported as zero when the read failed.
	if result.BalanceKnown {
		resp["new_balance"] = result.NewBalance
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// History lists the caller's own codes, newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	codes, err := h.service.History(c.UserContext(), middleware.CallerID(c))
	if err != nil {
		return mapError(err)
	}

	out := make([]fiber.Map, 0, len(codes))
	for _, code := range codes {
		entry := fiber.Map{
			"code_id":     code.ID,
			"amount":      code.Amount,
			"description": code.Description,
			"status":      code.Status,
			"created_at":  code.CreatedAt,
			"expires_at":  code.ExpiresAt,
		}
		if code.TransactionID != "" {
			entry["transaction_id"] = code.TransactionID
		}
		out = append(out, entry)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"codes": out})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return apperr.BadRequest(apperr.CodeValidation, err.Error())
	case errors.Is(err, ErrCodeNotFound):
		return apperr.NotFound("payment code not found")
	case errors.Is(err, ErrCodeExpired):
		return apperr.BadRequest(apperr.CodeExpired, "payment code has expired")
	case errors.Is(err, ErrCodeNotRedeemable):
		return apperr.New(http.StatusConflict, apperr.CodeNotRedeemable, "payment code is no longer active")
	case errors.Is(err, ErrSelfPayment):
		return apperr.BadRequest(apperr.CodeSelfPayment, "cannot pay your own payment code")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return apperr.BadRequest(apperr.CodeInsufficientFunds, "insufficient balance")
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, directory.ErrNotFound):
		return apperr.NotFound("account not found")
	case errors.Is(err, ledger.ErrStoreUnavailable):
		return apperr.Unavailable()
	default:
		return err
	}
}
