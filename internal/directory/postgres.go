package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paywave/paywave/internal/ledger"
)

// PostgresDirectory reads account display data from the shared accounts table.
// The rows themselves are owned by the user-directory service.
type PostgresDirectory struct {
	db *pgxpool.Pool
}

// NewPostgresDirectory builds a Postgres-backed directory client.
func NewPostgresDirectory(db *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// Account fetches display data for the identity.
func (d *PostgresDirectory) Account(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	var account Account
	row := d.db.QueryRow(ctx, `SELECT id, display_name, balance FROM accounts WHERE id = $1`, accountID)
	var idVal uuid.UUID
	if err := row.Scan(&idVal, &account.DisplayName, &account.Balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("directory lookup: %w: %v", ledger.ErrStoreUnavailable, err)
	}
	account.ID = idVal.String()
	return account, nil
}

// Exists reports whether the identity is known to the directory.
func (d *PostgresDirectory) Exists(ctx context.Context, id string) (bool, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}
	var exists bool
	if err := d.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return false, fmt.Errorf("directory exists: %w: %v", ledger.ErrStoreUnavailable, err)
	}
	return exists, nil
}
