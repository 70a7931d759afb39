package paycode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paywave/paywave/internal/directory"
	"github.com/paywave/paywave/internal/ledger"
	"github.com/paywave/paywave/internal/notification"
)

var (
	// ErrInvalidAmount occurs when a code is requested for a non-positive amount.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrSelfPayment occurs when the payer is the code's own payee.
	ErrSelfPayment = errors.New("cannot pay your own payment code")
)

const defaultDescription = "Payment request"

// Service manages the payment-code lifecycle: creation, lookup with lazy
// expiry, and exactly-once redemption through the ledger.
type Service struct {
	repo      Repository
	ledger    ledger.Ledger
	directory directory.Directory
	notifier  notification.Notifier
	ttl       time.Duration
	timeout   time.Duration
}

// NewService builds a payment-code service. ttl bounds how long a code stays
// redeemable; timeout bounds every store access.
func NewService(repo Repository, l ledger.Ledger, dir directory.Directory, notifier notification.Notifier, ttl, timeout time.Duration) *Service {
	return &Service{repo: repo, ledger: l, directory: dir, notifier: notifier, ttl: ttl, timeout: timeout}
}

// CreateInput captures the payee's request to be paid a fixed amount.
type CreateInput struct {
	PayeeID     string
	Amount      int64
	Description string
}

// Create issues an active payment code expiring after the configured TTL.
func (s *Service) Create(ctx context.Context, input CreateInput) (PaymentCode, error) {
	if input.Amount <= 0 {
		return PaymentCode{}, ErrInvalidAmount
	}
	description := input.Description
	if description == "" {
		description = defaultDescription
	}

	now := time.Now().UTC()
	code := PaymentCode{
		ID:          uuid.NewString(),
		PayeeID:     input.PayeeID,
		Amount:      input.Amount,
		Description: description,
		Status:      StatusActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.repo.Create(ctx, code); err != nil {
		return PaymentCode{}, err
	}
	return code, nil
}

// Details is a fetched code together with the payee's display name.
type Details struct {
	Code      PaymentCode
	PayeeName string
}

// Fetch returns an active code with payee display info. A code observed past
// its expiry is transitioned to expired before the call fails.
func (s *Service) Fetch(ctx context.Context, codeID string) (Details, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	code, err := s.repo.Get(ctx, codeID)
	if err != nil {
		return Details{}, err
	}
	if err := s.gate(ctx, code); err != nil {
		return Details{}, err
	}

	payee, err := s.directory.Account(ctx, code.PayeeID)
	if err != nil {
		return Details{}, err
	}
	return Details{Code: code, PayeeName: payee.DisplayName}, nil
}

// RedeemInput identifies the code and the authenticated payer.
type RedeemInput struct {
	CodeID  string
	PayerID string
}

// RedeemResult reports the completed transaction and the payer's new balance.
// BalanceKnown is false when the post-commit balance read failed; NewBalance
// carries no meaning then.
type RedeemResult struct {
	Transaction  ledger.Transaction
	Code         PaymentCode
	NewBalance   int64
	BalanceKnown bool
}

// Redeem moves the code's amount from payer to payee and marks the code used,
// exactly once. Validation repeats the fetch-time checks inline because the
// code may have expired or been redeemed between the client's fetch and this
// call. A losing racer gets ErrCodeNotRedeemable; a failed transfer leaves
// the code active.
func (s *Service) Redeem(ctx context.Context, input RedeemInput) (RedeemResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	code, err := s.repo.Get(ctx, input.CodeID)
	if err != nil {
		return RedeemResult{}, err
	}
	if err := s.gate(ctx, code); err != nil {
		return RedeemResult{}, err
	}
	if code.PayeeID == input.PayerID {
		return RedeemResult{}, ErrSelfPayment
	}

	description := fmt.Sprintf("Payment: %s", code.Description)
	record, updated, err := s.repo.Redeem(ctx, input.CodeID, input.PayerID, description)
	if err != nil {
		return RedeemResult{}, err
	}

	// The redemption committed; the balance read is best effort and its
	// failure must not invent a number.
	balance, balanceErr := s.ledger.Balance(ctx, input.PayerID)

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindCodeRedeemed,
			Destination: updated.PayeeID,
			Body:        fmt.Sprintf("Payment code %s was paid: %d", updated.ID, updated.Amount),
		})
	}

	result := RedeemResult{Transaction: record, Code: updated}
	if balanceErr == nil {
		result.NewBalance = balance
		result.BalanceKnown = true
	}
	return result, nil
}

// History lists the payee's codes, newest first, including terminal ones.
func (s *Service) History(ctx context.Context, payeeID string) ([]PaymentCode, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.repo.ListForPayee(ctx, payeeID)
}

// gate rejects codes that are not redeemable, lazily expiring stale ones.
func (s *Service) gate(ctx context.Context, code PaymentCode) error {
	switch {
	case code.Status == StatusExpired:
		return ErrCodeExpired
	case code.Status != StatusActive:
		return ErrCodeNotRedeemable
	case code.Expired(time.Now().UTC()):
		if err := s.repo.Expire(ctx, code.ID); err != nil && !errors.Is(err, ErrCodeNotFound) {
			return err
		}
		return ErrCodeExpired
	}
	return nil
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
