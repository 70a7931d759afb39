package ledger

// SeedBalance is a test helper that seeds the balance for an account when using the in-memory ledger.
func SeedBalance(l Ledger, accountID string, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if account, exists := mem.accounts[accountID]; exists {
			account.balance = amount
		}
	}
}

// TotalBalance is a test helper summing all in-memory balances, used to assert
// the conservation invariant.
func TotalBalance(l Ledger) int64 {
	mem, ok := l.(*inMemoryLedger)
	if !ok {
		return 0
	}
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	var total int64
	for _, account := range mem.accounts {
		total += account.balance
	}
	return total
}
