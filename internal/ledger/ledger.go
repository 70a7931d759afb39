package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAccountNotFound occurs when the referenced account does not exist in the store.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds occurs when a debit would take an account balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrStoreUnavailable indicates a transient infrastructure failure. Callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

const (
	// KindDeposit is an external credit into an account, the only money-creation path.
	KindDeposit = "deposit"
	// KindTransfer is a balanced account-to-account movement.
	KindTransfer = "transfer"
	// KindWithdrawal is an external debit out of an account.
	KindWithdrawal = "withdrawal"

	// StatusPending marks a transaction awaiting completion.
	StatusPending = "pending"
	// StatusCompleted marks a settled transaction. Terminal.
	StatusCompleted = "completed"
	// StatusFailed marks a rejected transaction. Terminal.
	StatusFailed = "failed"

	MethodCard = "card"
	MethodBank = "bank"
	MethodUPI  = "upi"
)

// ValidMethod reports whether the payment method tag is recognized for deposits.
func ValidMethod(method string) bool {
	switch method {
	case MethodCard, MethodBank, MethodUPI:
		return true
	default:
		return false
	}
}

// Transaction is an immutable record of a money movement. Once its status is
// terminal nothing mutates it except the linkage from a payment code.
type Transaction struct {
	ID          string
	Kind        string
	Amount      int64
	Description string
	SenderID    string
	ReceiverID  string
	Method      string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ledger is the single choke point for balance mutation. Every credit is
// matched by an equal debit except deposits; no committed balance is negative.
type Ledger interface {
	EnsureAccount(ctx context.Context, accountID, displayName string) error
	Balance(ctx context.Context, accountID string) (int64, error)
	ApplyDelta(ctx context.Context, accountID string, delta int64) (int64, error)
	Deposit(ctx context.Context, accountID string, amount int64, method, description string) (Transaction, error)
	Transfer(ctx context.Context, senderID, receiverID string, amount int64, description string) (Transaction, error)
	Transactions(ctx context.Context, accountID string) ([]Transaction, error)
}
