package paycode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/paywave/paywave/internal/directory"
	"github.com/paywave/paywave/internal/ledger"
	"github.com/paywave/paywave/internal/notification"
)

type testNotifier struct {
	mu   sync.Mutex
	last notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = msg
	return nil
}

type fixture struct {
	ledger   ledger.Ledger
	repo     Repository
	dir      *directory.MemoryDirectory
	notifier *testNotifier
	svc      *Service
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	led := ledger.NewInMemory()
	repo := NewMemoryRepository(led)
	dir := directory.NewMemory()
	notifier := &testNotifier{}
	return &fixture{
		ledger:   led,
		repo:     repo,
		dir:      dir,
		notifier: notifier,
		svc:      NewService(repo, led, dir, notifier, ttl, time.Second),
	}
}

func (f *fixture) account(t *testing.T, name string, balance int64) string {
	t.Helper()
	id := uuid.NewString()
	if err := f.ledger.EnsureAccount(context.Background(), id, name); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	ledger.SeedBalance(f.ledger, id, balance)
	f.dir.Put(directory.Account{ID: id, DisplayName: name, Balance: balance})
	return id
}

func TestCreateDefaultsAndValidation(t *testing.T) {
	f := newFixture(t, 24*time.Hour)
	payee := f.account(t, "Alice", 0)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, CreateInput{PayeeID: payee, Amount: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}

	code, err := f.svc.Create(ctx, CreateInput{PayeeID: payee, Amount: 40})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if code.Status != StatusActive {
		t.Fatalf("new code must be active, got %s", code.Status)
	}
	if code.Description != "Payment request" {
		t.Fatalf("empty description must default, got %q", code.Description)
	}
	ttl := code.ExpiresAt.Sub(code.CreatedAt)
	if ttl != 24*time.Hour {
		t.Fatalf("expected 24h expiry window, got %v", ttl)
	}
}

func TestFetchReturnsPayeeDisplayInfo(t *testing.T) {
	f := newFixture(t, time.Hour)
	payee := f.account(t, "Alice Merchant", 0)
	ctx := context.Background()

	code, _ := f.svc.Create(ctx, CreateInput{PayeeID: payee, Amount: 500, Description: "Coffee"})

	details, err := f.svc.Fetch(ctx, code.ID)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if details.PayeeName != "Alice Merchant" {
		t.Fatalf("expected payee name, got %q", details.PayeeName)
	}
	if details.Code.Amount != 500 || details.Code.Description != "Coffee" {
		t.Fatalf("unexpected code details: %+v", details.Code)
	}

	if _, err := f.svc.Fetch(ctx, uuid.NewString()); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFetchLazilyExpiresStaleCodes(t *testing.T) {
	f := newFixture(t, time.Hour)
	payee := f.account(t, "Alice", 0)
	ctx := context.Background()

	stale := PaymentCode{
		ID:          uuid.NewString(),
		PayeeID:     payee,
		Amount:      100,
		Description: "old",
		Status:      StatusActive,
		CreatedAt:   time.Now().UTC().Add(-25 * time.Hour),
		ExpiresAt:   time.Now().UTC().Add(-time.Hour),
	}
	if err := f.repo.Create(ctx, stale); err != nil {
		t.Fatalf("seed code: %v", err)
	}

	if _, err := f.svc.Fetch(ctx, stale.ID); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected expired, got %v", err)
	}

	// The transition is materialized and terminal.
	got, err := f.repo.Get(ctx, stale.ID)
	if err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if got.Status != StatusExpired {
		t.Fatalf("lazy expiry not persisted, status=%s", got.Status)
	}
	if _, err := f.svc.Fetch(ctx, stale.ID); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expired is terminal, got %v", err)
	}
}

func TestRedeemMovesFundsExactlyOnce(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	// A deposits 100, requests 40. B holds 50 and pays the code.
	payee := f.account(t, "A", 0)
	payer := f.account(t, "B", 0)
	if _, err := f.ledger.Deposit(ctx, payee, 100, ledger.MethodCard, "top up"); err != nil {
		t.Fatalf("seed payee: %v", err)
	}
	if _, err := f.ledger.Deposit(ctx, payer, 50, ledger.MethodCard, "top up"); err != nil {
		t.Fatalf("seed payer: %v", err)
	}

	code, _ := f.svc.Create(ctx, CreateInput{PayeeID: payee, Amount: 40, Description: "Lunch"})

	result, err := f.svc.Redeem(ctx, RedeemInput{CodeID: code.ID, PayerID: payer})
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if !result.BalanceKnown || result.NewBalance != 10 {
		t.Fatalf("expected known payer balance 10, got %+v", result)
	}
	if result.Transaction.Kind != ledger.KindTransfer || result.Transaction.Amount != 40 {
		t.Fatalf("unexpected transaction: %+v", result.Transaction)
	}
	if result.Transaction.SenderID != payer || result.Transaction.ReceiverID != payee {
		t.Fatalf("wrong parties: %+v", result.Transaction)
	}

	payeeBalance, _ := f.ledger.Balance(ctx, payee)
	if payeeBalance != 140 {
		t.Fatalf("expected payee balance 140, got %d", payeeBalance)
	}

	used, _ := f.repo.Get(ctx, code.ID)
	if used.Status != StatusUsed || used.TransactionID != result.Transaction.ID {
		t.Fatalf("code not linked to its transaction: %+v", used)
	}

	// A second attempt fails and the linkage is stable.
	if _, err := f.svc.Redeem(ctx, RedeemInput{CodeID: code.ID, PayerID: payer}); !errors.Is(err, ErrCodeNotRedeemable) {
		t.Fatalf("expected not redeemable, got %v", err)
	}
	again, _ := f.repo.Get(ctx, code.ID)
	if again.TransactionID != result.Transaction.ID {
		t.Fatalf("linked transaction changed: %+v", again)
	}

	if f.notifier.last.Kind != notification.KindCodeRedeemed || f.notifier.last.Destination != payee {
		t.Fatalf("payee not notified: %+v", f.notifier.last)
	}
}

// balanceFailLedger makes every balance read fail while leaving the rest of
// the ledger intact.
type balanceFailLedger struct {
	ledger.Ledger
}

func (l *balanceFailLedger) Balance(context.Context, string) (int64, error) {
	return 0, ledger.ErrStoreUnavailable
}

func TestRedeemReportsUnknownBalanceInsteadOfZero(t *testing.T) {
	led := ledger.NewInMemory()
	repo := NewMemoryRepository(led)
	dir := directory.NewMemory()
	svc := NewService(repo, &balanceFailLedger{Ledger: led}, dir, &testNotifier{}, time.Hour, time.Second)
	ctx := context.Background()

	payee, payer := uuid.NewString(), uuid.NewString()
	led.EnsureAccount(ctx, payee, "A")
	led.EnsureAccount(ctx, payer, "B")
	ledger.SeedBalance(led, payer, 100)
	dir.Put(directory.Account{ID: payee, DisplayName: "A"})

	code, err := svc.Create(ctx, CreateInput{PayeeID: payee, Amount: 40})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := svc.Redeem(ctx, RedeemInput{CodeID: code.ID, PayerID: payer})
	if err != nil {
		t.Fatalf("redeem must succeed despite the failed balance read: %v", err)
	}
	if result.BalanceKnown {
		t.Fatalf("balance must be reported unknown, got %+v", result)
	}
	if result.NewBalance != 0 {
		t.Fatalf("unknown balance must not carry a value, got %d", result.NewBalance)
	}

	// The redemption itself committed.
	used, _ := repo.Get(ctx, code.ID)
	if used.Status != StatusUsed {
		t.Fatalf("code must be used, got %s", used.Status)
	}
	payerBalance, _ := led.Balance(ctx, payer)
	if payerBalance != 60 {
		t.Fatalf("expected payer balance 60, got %d", payerBalance)
	}
}

func TestRedeemSelfPaymentRejected(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	payee := f.account(t, "A", 1_000)

	code, _ := f.svc.Create(ctx, CreateInput{PayeeID: payee, Amount: 40})

	if _, err := f.svc.Redeem(ctx, RedeemInput{CodeID: code.ID, PayerID: payee}); !errors.Is(err, ErrSelfPayment) {
		t.Fatalf("expected self payment, got %v", err)
	}
	balance, _ := f.ledger.Balance(ctx, payee)
	if balance != 1_000 {
		t.Fatalf("self payment must not move money, balance=%d", balance)
	}
	got, _ := f.repo.Get(ctx, code.ID)
	if got.Status != StatusActive {
		t.Fatalf("code must stay active, got %s", got.Status)
	}
}

func TestRedeemInsufficientFundsLeavesCodeActive(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	payee := f.account(t, "A", 0)
	payer := f.account(t, "B", 10)

	code, _ := f.svc.Create(ctx, CreateInput{PayeeID: payee, Amount: 40})

	if _, err := f.svc.Redeem(ctx, RedeemInput{CodeID: code.ID, PayerID: payer}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	got, _ := f.repo.Get(ctx, code.ID)
	if got.Status != StatusActive || got.TransactionID != "" {
		t.Fatalf("failed redemption must leave the code untouched: %+v", got)
	}
	payerBalance, _ := f.ledger.Balance(ctx, payer)
	payeeBalance, _ := f.ledger.Balance(ctx, payee)
	if payerBalance != 10 || payeeBalance != 0 {
		t.Fatalf("balances mutated: payer=%d payee=%d", payerBalance, payeeBalance)
	}
}

func TestRedeemExpiredNeverMovesMoney(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	payee := f.account(t, "A", 0)
	payer := f.account(t, "B", 1_000)

	stale := PaymentCode{
		ID:        uuid.NewString(),
		PayeeID:   payee,
		Amount:    100,
		Status:    StatusActive,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	f.repo.Create(ctx, stale)

	if _, err := f.svc.Redeem(ctx, RedeemInput{CodeID: stale.ID, PayerID: payer}); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	balance, _ := f.ledger.Balance(ctx, payer)
	if balance != 1_000 {
		t.Fatalf("expired redemption moved money, balance=%d", balance)
	}
}

func TestConcurrentRedemptionsExactlyOneWins(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	payee := f.account(t, "A", 0)

	code, _ := f.svc.Create(ctx, CreateInput{PayeeID: payee, Amount: 40})

	const payers = 8
	ids := make([]string, payers)
	for i := range ids {
		ids[i] = f.account(t, "payer", 1_000)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, losses := 0, 0
	for _, payerID := range ids {
		wg.Add(1)
		go func(payerID string) {
			defer wg.Done()
			_, err := f.svc.Redeem(ctx, RedeemInput{CodeID: code.ID, PayerID: payerID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrCodeNotRedeemable):
				losses++
			default:
				t.Errorf("unexpected redemption error: %v", err)
			}
		}(payerID)
	}
	wg.Wait()

	if wins != 1 || losses != payers-1 {
		t.Fatalf("expected exactly one winner, got wins=%d losses=%d", wins, losses)
	}
	payeeBalance, _ := f.ledger.Balance(ctx, payee)
	if payeeBalance != 40 {
		t.Fatalf("payee must be credited exactly once, balance=%d", payeeBalance)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	payee := f.account(t, "A", 0)

	for i := 0; i < 3; i++ {
		stale := PaymentCode{
			ID:        uuid.NewString(),
			PayeeID:   payee,
			Amount:    int64(100 + i),
			Status:    StatusActive,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Minute),
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		}
		f.repo.Create(ctx, stale)
	}

	codes, err := f.svc.History(ctx, payee)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(codes) != 3 {
		t.Fatalf("expected 3 codes, got %d", len(codes))
	}
	if codes[0].Amount != 102 || codes[2].Amount != 100 {
		t.Fatalf("history not newest first: %+v", codes)
	}
}

func TestPurgeExpiredRemovesOnlyDeadCodes(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	payee := f.account(t, "A", 0)

	dead := PaymentCode{
		ID:        uuid.NewString(),
		PayeeID:   payee,
		Amount:    10,
		Status:    StatusExpired,
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-24 * time.Hour),
	}
	f.repo.Create(ctx, dead)
	live, _ := f.svc.Create(ctx, CreateInput{PayeeID: payee, Amount: 10})

	purged, err := f.repo.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged code, got %d", purged)
	}
	if _, err := f.repo.Get(ctx, dead.ID); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("dead code should be gone, got %v", err)
	}
	if _, err := f.repo.Get(ctx, live.ID); err != nil {
		t.Fatalf("live code must survive purge: %v", err)
	}
}
