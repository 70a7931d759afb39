// Package directory is the client side of the external user-directory
// collaborator. The core never manages registration or sessions; it only
// resolves already-authenticated account identities to display data.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound occurs when the directory has no account for the identity.
var ErrNotFound = errors.New("account not found in directory")

// Account is the directory's view of a wallet holder.
type Account struct {
	ID          string
	DisplayName string
	Balance     int64
}

// Directory resolves account identities.
type Directory interface {
	Account(ctx context.Context, id string) (Account, error)
	Exists(ctx context.Context, id string) (bool, error)
}
