package paycode

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/paywave/paywave/internal/ledger"
)

type memoryRepository struct {
	mu     sync.Mutex
	codes  map[string]PaymentCode
	ledger ledger.Ledger
}

// NewMemoryRepository constructs an in-memory repository for tests. Redemption
// holds the repository lock across the ledger transfer and the status
// transition, so no observer ever sees a half-redeemed code.
func NewMemoryRepository(l ledger.Ledger) Repository {
	return &memoryRepository{codes: make(map[string]PaymentCode), ledger: l}
}

func (r *memoryRepository) Create(_ context.Context, code PaymentCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[code.ID] = code
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (PaymentCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.codes[id]
	if !ok {
		return PaymentCode{}, ErrCodeNotFound
	}
	return code, nil
}

func (r *memoryRepository) Expire(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.codes[id]
	if !ok {
		return ErrCodeNotFound
	}
	if code.Status == StatusActive && code.Expired(time.Now().UTC()) {
		code.Status = StatusExpired
		r.codes[id] = code
	}
	return nil
}

func (r *memoryRepository) Redeem(ctx context.Context, codeID, payerID, description string) (ledger.Transaction, PaymentCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[codeID]
	if !ok {
		return ledger.Transaction{}, PaymentCode{}, ErrCodeNotFound
	}

	switch {
	case code.Status == StatusExpired:
		return ledger.Transaction{}, code, ErrCodeExpired
	case code.Status != StatusActive:
		return ledger.Transaction{}, code, ErrCodeNotRedeemable
	case code.Expired(time.Now().UTC()):
		code.Status = StatusExpired
		r.codes[codeID] = code
		return ledger.Transaction{}, code, ErrCodeExpired
	}

	record, err := r.ledger.Transfer(ctx, payerID, code.PayeeID, code.Amount, description)
	if err != nil {
		// The code stays active and unmodified.
		return ledger.Transaction{}, code, err
	}

	code.Status = StatusUsed
	code.TransactionID = record.ID
	r.codes[codeID] = code
	return record, code, nil
}

func (r *memoryRepository) ListForPayee(_ context.Context, payeeID string) ([]PaymentCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []PaymentCode
	for _, code := range r.codes {
		if code.PayeeID == payeeID {
			out = append(out, code)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for id, code := range r.codes {
		if code.Status != StatusUsed && code.TransactionID == "" && code.ExpiresAt.Before(cutoff) {
			delete(r.codes, id)
			purged++
		}
	}
	return purged, nil
}