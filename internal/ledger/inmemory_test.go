package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestInMemoryLedger_DepositCreditsAccount(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	a := uuid.NewString()

	if err := l.EnsureAccount(ctx, a, "Alice"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	record, err := l.Deposit(ctx, a, 10_000, MethodCard, "top up")
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if record.Kind != KindDeposit || record.Status != StatusCompleted {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.ReceiverID != a || record.SenderID != "" {
		t.Fatalf("deposit should only reference the receiver: %+v", record)
	}

	balance, err := l.Balance(ctx, a)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 10_000 {
		t.Fatalf("expected balance 10000, got %d", balance)
	}
}

func TestInMemoryLedger_TransferMaintainsConservation(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	a, b := uuid.NewString(), uuid.NewString()
	l.EnsureAccount(ctx, a, "Alice")
	l.EnsureAccount(ctx, b, "Bob")
	SeedBalance(l, a, 10_000)

	record, err := l.Transfer(ctx, a, b, 1_500, "rent")
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if record.SenderID != a || record.ReceiverID != b || record.Amount != 1_500 {
		t.Fatalf("unexpected record: %+v", record)
	}

	if total := TotalBalance(l); total != 10_000 {
		t.Fatalf("ledger not balanced, total=%d", total)
	}
}

func TestInMemoryLedger_TransferInsufficientFunds(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	a, b := uuid.NewString(), uuid.NewString()
	l.EnsureAccount(ctx, a, "Alice")
	l.EnsureAccount(ctx, b, "Bob")
	SeedBalance(l, a, 100)

	if _, err := l.Transfer(ctx, a, b, 500, "too much"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	balance, _ := l.Balance(ctx, a)
	if balance != 100 {
		t.Fatalf("failed transfer must not mutate balances, got %d", balance)
	}
}

func TestInMemoryLedger_ApplyDelta(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	a := uuid.NewString()
	l.EnsureAccount(ctx, a, "Alice")

	if _, err := l.ApplyDelta(ctx, uuid.NewString(), 100); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}

	balance, err := l.ApplyDelta(ctx, a, 250)
	if err != nil {
		t.Fatalf("credit delta: %v", err)
	}
	if balance != 250 {
		t.Fatalf("expected 250, got %d", balance)
	}

	if _, err := l.ApplyDelta(ctx, a, -300); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if balance, _ := l.Balance(ctx, a); balance != 250 {
		t.Fatalf("rejected delta must not change the balance, got %d", balance)
	}
}

func TestInMemoryLedger_ConcurrentTransfersNeverOverdraw(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	a, b := uuid.NewString(), uuid.NewString()
	l.EnsureAccount(ctx, a, "Alice")
	l.EnsureAccount(ctx, b, "Bob")
	SeedBalance(l, a, 1_000)

	// 10 racing transfers of 300 against a balance of 1000: at most three can win.
	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Transfer(ctx, a, b, 300, "race"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("expected exactly 3 winning transfers, got %d", succeeded)
	}
	balance, _ := l.Balance(ctx, a)
	if balance < 0 {
		t.Fatalf("balance went negative: %d", balance)
	}
	if total := TotalBalance(l); total != 1_000 {
		t.Fatalf("ledger not balanced after races, total=%d", total)
	}
}

func TestInMemoryLedger_TransactionsNewestFirst(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	a, b := uuid.NewString(), uuid.NewString()
	l.EnsureAccount(ctx, a, "Alice")
	l.EnsureAccount(ctx, b, "Bob")

	for i := 1; i <= 3; i++ {
		if _, err := l.Deposit(ctx, a, int64(i*100), MethodBank, fmt.Sprintf("deposit %d", i)); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}
	l.Transfer(ctx, a, b, 50, "latest")

	history, err := l.Transactions(ctx, a)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 records, got %d", len(history))
	}
	if history[0].Kind != KindTransfer {
		t.Fatalf("expected the transfer first, got %+v", history[0])
	}
	if history[1].Amount != 300 || history[3].Amount != 100 {
		t.Fatalf("history not newest first: %+v", history)
	}

	other, err := l.Transactions(ctx, b)
	if err != nil {
		t.Fatalf("transactions for b: %v", err)
	}
	if len(other) != 1 || other[0].Kind != KindTransfer {
		t.Fatalf("receiver should see the transfer only: %+v", other)
	}
}

func TestInMemoryLedger_ConservationAcrossMixedOperations(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	accounts := make([]string, 4)
	for i := range accounts {
		accounts[i] = uuid.NewString()
		l.EnsureAccount(ctx, accounts[i], fmt.Sprintf("acct-%d", i))
	}

	var deposited int64
	for i, id := range accounts {
		amount := int64((i + 1) * 1_000)
		if _, err := l.Deposit(ctx, id, amount, MethodUPI, "seed"); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		deposited += amount
	}

	// Shuffle money around; failures are fine, they must not leak value.
	for i := 0; i < 20; i++ {
		from := accounts[i%len(accounts)]
		to := accounts[(i+1)%len(accounts)]
		l.Transfer(ctx, from, to, int64(i*137), "shuffle")
	}

	if total := TotalBalance(l); total != deposited {
		t.Fatalf("conservation violated: deposited %d, total %d", deposited, total)
	}
}
