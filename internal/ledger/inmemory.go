package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryAccount struct {
	displayName string
	balance     int64
	createdAt   time.Time
}

type inMemoryLedger struct {
	mu           sync.RWMutex
	accounts     map[string]*memoryAccount
	transactions []Transaction
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
// A single mutex covers balances and the log, so every operation is atomic
// relative to concurrent callers.
func NewInMemory() Ledger {
	return &inMemoryLedger{accounts: make(map[string]*memoryAccount)}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, accountID, displayName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.accounts[accountID]; !exists {
		l.accounts[accountID] = &memoryAccount{displayName: displayName, createdAt: time.Now().UTC()}
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, accountID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	account, ok := l.accounts[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	return account.balance, nil
}

func (l *inMemoryLedger) ApplyDelta(_ context.Context, accountID string, delta int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account, ok := l.accounts[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if account.balance+delta < 0 {
		return 0, ErrInsufficientFunds
	}
	account.balance += delta
	return account.balance, nil
}

func (l *inMemoryLedger) Deposit(_ context.Context, accountID string, amount int64, method, description string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	account, ok := l.accounts[accountID]
	if !ok {
		return Transaction{}, ErrAccountNotFound
	}
	account.balance += amount

	record := Transaction{
		ID:          uuid.NewString(),
		Kind:        KindDeposit,
		Amount:      amount,
		Description: description,
		ReceiverID:  accountID,
		Method:      method,
		Status:      StatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	record.UpdatedAt = record.CreatedAt
	l.transactions = append(l.transactions, record)
	return record, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, senderID, receiverID string, amount int64, description string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sender, ok := l.accounts[senderID]
	if !ok {
		return Transaction{}, ErrAccountNotFound
	}
	receiver, ok := l.accounts[receiverID]
	if !ok {
		return Transaction{}, ErrAccountNotFound
	}
	if sender.balance < amount {
		return Transaction{}, ErrInsufficientFunds
	}

	sender.balance -= amount
	receiver.balance += amount

	record := Transaction{
		ID:          uuid.NewString(),
		Kind:        KindTransfer,
		Amount:      amount,
		Description: description,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Status:      StatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	record.UpdatedAt = record.CreatedAt
	l.transactions = append(l.transactions, record)
	return record, nil
}

func (l *inMemoryLedger) Transactions(_ context.Context, accountID string) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Transaction
	for i := len(l.transactions) - 1; i >= 0; i-- {
		t := l.transactions[i]
		if t.SenderID == accountID || t.ReceiverID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}
