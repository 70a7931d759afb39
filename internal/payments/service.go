package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paywave/paywave/internal/directory"
	"github.com/paywave/paywave/internal/ledger"
	"github.com/paywave/paywave/internal/notification"
)

var (
	// ErrInvalidAmount occurs when an amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInvalidMethod occurs when a deposit names an unrecognized payment method.
	ErrInvalidMethod = errors.New("payment method must be one of card, bank, upi")

	// ErrSelfTransfer occurs when sender and receiver are the same account.
	ErrSelfTransfer = errors.New("cannot transfer to your own account")

	// ErrDepositCeiling occurs when a deposit exceeds the configured ceiling.
	ErrDepositCeiling = errors.New("deposit exceeds the maximum allowed amount")

	// ErrDescriptionRequired occurs when a transfer carries no description.
	ErrDescriptionRequired = errors.New("description is required")
)

const defaultDepositDescription = "Wallet deposit"

// Service validates and executes the balance-changing operations. Deposits
// inject money; transfers conserve it. All mutation goes through the ledger.
type Service struct {
	ledger         ledger.Ledger
	directory      directory.Directory
	notifier       notification.Notifier
	depositCeiling int64
	timeout        time.Duration
}

// NewService builds the transfer/deposit processor.
func NewService(l ledger.Ledger, dir directory.Directory, notifier notification.Notifier, depositCeiling int64, timeout time.Duration) *Service {
	return &Service{ledger: l, directory: dir, notifier: notifier, depositCeiling: depositCeiling, timeout: timeout}
}

// DepositInput captures a request to add money to the caller's own account.
type DepositInput struct {
	AccountID   string
	Amount      int64
	Method      string
	Description string
}

// Result reports the recorded transaction and the caller's new balance.
type Result struct {
	Transaction ledger.Transaction
	NewBalance  int64
}

// Deposit credits the account and records a completed deposit transaction.
// Validation happens before any store access.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (Result, error) {
	if input.Amount <= 0 {
		return Result{}, ErrInvalidAmount
	}
	if input.Amount > s.depositCeiling {
		return Result{}, ErrDepositCeiling
	}
	if !ledger.ValidMethod(input.Method) {
		return Result{}, ErrInvalidMethod
	}
	description := input.Description
	if description == "" {
		description = defaultDepositDescription
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	record, err := s.ledger.Deposit(ctx, input.AccountID, input.Amount, input.Method, description)
	if err != nil {
		return Result{}, err
	}

	balance, err := s.ledger.Balance(ctx, input.AccountID)
	if err != nil {
		return Result{}, err
	}
	return Result{Transaction: record, NewBalance: balance}, nil
}

// TransferInput captures a request to move money to another account.
type TransferInput struct {
	SenderID    string
	ReceiverID  string
	Amount      int64
	Description string
}

// Transfer debits the sender and credits the receiver as one unit. The
// sufficient-funds check runs inside the ledger against the authoritative
// balance, not a stale read.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (Result, error) {
	if input.Amount <= 0 {
		return Result{}, ErrInvalidAmount
	}
	if input.Description == "" {
		return Result{}, ErrDescriptionRequired
	}
	if input.SenderID == input.ReceiverID {
		return Result{}, ErrSelfTransfer
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	exists, err := s.directory.Exists(ctx, input.ReceiverID)
	if err != nil {
		return Result{}, err
	}
	if !exists {
		return Result{}, ledger.ErrAccountNotFound
	}

	record, err := s.ledger.Transfer(ctx, input.SenderID, input.ReceiverID, input.Amount, input.Description)
	if err != nil {
		return Result{}, err
	}

	balance, err := s.ledger.Balance(ctx, input.SenderID)
	if err != nil {
		return Result{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: input.ReceiverID,
			Body:        fmt.Sprintf("You received %d from account %s", input.Amount, input.SenderID),
		})
	}

	return Result{Transaction: record, NewBalance: balance}, nil
}

// History lists all transactions touching the account, newest first.
func (s *Service) History(ctx context.Context, accountID string) ([]ledger.Transaction, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.ledger.Transactions(ctx, accountID)
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
