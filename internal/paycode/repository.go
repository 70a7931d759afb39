package paycode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paywave/paywave/internal/ledger"
)

var (
	// ErrCodeNotFound occurs when no payment code exists for the identifier.
	ErrCodeNotFound = errors.New("payment code not found")

	// ErrCodeExpired occurs when a code is observed past its expiry timestamp.
	ErrCodeExpired = errors.New("payment code expired")

	// ErrCodeNotRedeemable occurs when a code is already used or lost a redemption race.
	ErrCodeNotRedeemable = errors.New("payment code not redeemable")
)

// Repository persists payment codes. Redeem is the atomic commit point: the
// active→used transition, the funds movement and the transaction linkage
// either all happen or none do.
type Repository interface {
	Create(ctx context.Context, code PaymentCode) error
	Get(ctx context.Context, id string) (PaymentCode, error)
	Expire(ctx context.Context, id string) error
	Redeem(ctx context.Context, codeID, payerID, description string) (ledger.Transaction, PaymentCode, error)
	ListForPayee(ctx context.Context, payeeID string) ([]PaymentCode, error)
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresRepository stores payment codes in PostgreSQL, sharing the accounts
// and transactions tables with the ledger so redemption is one SQL commit.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a payment code in active state.
func (r *PostgresRepository) Create(ctx context.Context, code PaymentCode) error {
	codeID, err := uuid.Parse(code.ID)
	if err != nil {
		return fmt.Errorf("parse code id: %w", err)
	}
	payeeID, err := uuid.Parse(code.PayeeID)
	if err != nil {
		return fmt.Errorf("parse payee id: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO payment_codes
        (id, payee_id, amount, description, status, created_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		codeID, payeeID, code.Amount, code.Description, code.Status,
		code.CreatedAt.UTC(), code.ExpiresAt.UTC())
	if err != nil {
		return storeErr("create code", err)
	}
	return nil
}

// Get fetches a payment code by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (PaymentCode, error) {
	codeID, err := uuid.Parse(id)
	if err != nil {
		return PaymentCode{}, ErrCodeNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, payee_id, amount, description, status,
        COALESCE(transaction_id::text, ''), created_at, expires_at
        FROM payment_codes WHERE id = $1`, codeID)
	return scanCode(row)
}

// Expire transitions the code to expired if it is still active and past its
// expiry. The conditional update makes concurrent observers converge on the
// same terminal state without error.
func (r *PostgresRepository) Expire(ctx context.Context, id string) error {
	codeID, err := uuid.Parse(id)
	if err != nil {
		return ErrCodeNotFound
	}
	_, err = r.db.Exec(ctx, `UPDATE payment_codes SET status = $2
        WHERE id = $1 AND status = $3 AND expires_at <= $4`,
		codeID, StatusExpired, StatusActive, time.Now().UTC())
	if err != nil {
		return storeErr("expire code", err)
	}
	return nil
}

// Redeem performs the exactly-once redemption as a single SQL transaction:
// the code row is locked, revalidated, the payer is debited and the payee
// credited via the ledger, and the code is marked used with the transaction
// linked. Any failure rolls the whole commit back, leaving the code active.
func (r *PostgresRepository) Redeem(ctx context.Context, codeID, payerID, description string) (ledger.Transaction, PaymentCode, error) {
	id, err := uuid.Parse(codeID)
	if err != nil {
		return ledger.Transaction{}, PaymentCode{}, ErrCodeNotFound
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ledger.Transaction{}, PaymentCode{}, storeErr("begin redeem", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT id, payee_id, amount, description, status,
        COALESCE(transaction_id::text, ''), created_at, expires_at
        FROM payment_codes WHERE id = $1 FOR UPDATE`, id)
	code, err := scanCode(row)
	if err != nil {
		return ledger.Transaction{}, PaymentCode{}, err
	}

	switch {
	case code.Status == StatusExpired:
		return ledger.Transaction{}, code, ErrCodeExpired
	case code.Status != StatusActive:
		return ledger.Transaction{}, code, ErrCodeNotRedeemable
	case code.Expired(time.Now().UTC()):
		// Lazy expiry: materialize the terminal state, commit it alone and
		// report the code as expired. No money moves.
		if _, err := tx.Exec(ctx, `UPDATE payment_codes SET status = $2 WHERE id = $1`, id, StatusExpired); err != nil {
			return ledger.Transaction{}, code, storeErr("expire code", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return ledger.Transaction{}, code, storeErr("commit expiry", err)
		}
		code.Status = StatusExpired
		return ledger.Transaction{}, code, ErrCodeExpired
	}

	record, err := ledger.TransferInTx(ctx, tx, payerID, code.PayeeID, code.Amount, description)
	if err != nil {
		return ledger.Transaction{}, code, err
	}

	if _, err := tx.Exec(ctx, `UPDATE payment_codes SET status = $2, transaction_id = $3
        WHERE id = $1`, id, StatusUsed, record.ID); err != nil {
		return ledger.Transaction{}, code, storeErr("mark code used", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ledger.Transaction{}, code, storeErr("commit redeem", err)
	}

	code.Status = StatusUsed
	code.TransactionID = record.ID
	return record, code, nil
}

// ListForPayee returns the payee's codes, newest first.
func (r *PostgresRepository) ListForPayee(ctx context.Context, payeeID string) ([]PaymentCode, error) {
	id, err := uuid.Parse(payeeID)
	if err != nil {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, payee_id, amount, description, status,
        COALESCE(transaction_id::text, ''), created_at, expires_at
        FROM payment_codes WHERE payee_id = $1 ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, storeErr("list codes", err)
	}
	defer rows.Close()

	var out []PaymentCode
	for rows.Next() {
		code, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list codes", err)
	}
	return out, nil
}

// PurgeExpired deletes unused codes whose expiry passed before the cutoff.
// Expiry itself stays lazy; this only reclaims rows nobody can redeem anymore.
func (r *PostgresRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM payment_codes
        WHERE transaction_id IS NULL AND expires_at < $1 AND status <> $2`,
		cutoff.UTC(), StatusUsed)
	if err != nil {
		return 0, storeErr("purge codes", err)
	}
	return cmd.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCode(row rowScanner) (PaymentCode, error) {
	var code PaymentCode
	var id, payeeID uuid.UUID
	if err := row.Scan(&id, &payeeID, &code.Amount, &code.Description, &code.Status,
		&code.TransactionID, &code.CreatedAt, &code.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentCode{}, ErrCodeNotFound
		}
		return PaymentCode{}, storeErr("scan code", err)
	}
	code.ID = id.String()
	code.PayeeID = payeeID.String()
	return code, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ledger.ErrStoreUnavailable, err)
}
