package directory

import (
	"context"
	"sync"
)

type MemoryDirectory struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemory builds an in-memory directory for tests and local development.
func NewMemory() *MemoryDirectory {
	return &MemoryDirectory{accounts: make(map[string]Account)}
}

// Put registers an account in the directory.
func (d *MemoryDirectory) Put(account Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[account.ID] = account
}

func (d *MemoryDirectory) Account(_ context.Context, id string) (Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	account, ok := d.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (d *MemoryDirectory) Exists(_ context.Context, id string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.accounts[id]
	return ok, nil
}
