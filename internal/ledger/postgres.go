package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists balances and the transaction log in PostgreSQL.
// Multi-record operations run inside a single SQL transaction with row locks
// so no reader ever observes a half-applied movement.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account row exists for the given identity.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, accountID, displayName string) error {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return ErrAccountNotFound
	}
	_, err = l.db.Exec(ctx, `INSERT INTO accounts (id, display_name, balance, created_at)
        VALUES ($1, $2, 0, $3) ON CONFLICT (id) DO NOTHING`, id, displayName, time.Now().UTC())
	if err != nil {
		return wrapStore("ensure account", err)
	}
	return nil
}

// Balance returns the current committed balance for the account.
func (l *PostgresLedger) Balance(ctx context.Context, accountID string) (int64, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return 0, ErrAccountNotFound
	}
	var balance int64
	if err := l.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1`, id).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, wrapStore("read balance", err)
	}
	return balance, nil
}

// ApplyDelta adjusts the balance by a signed amount as one conditional update.
// The balance never goes negative; the guard and the write are the same statement.
func (l *PostgresLedger) ApplyDelta(ctx context.Context, accountID string, delta int64) (int64, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return 0, ErrAccountNotFound
	}
	var balance int64
	err = l.db.QueryRow(ctx, `UPDATE accounts SET balance = balance + $2
        WHERE id = $1 AND balance + $2 >= 0 RETURNING balance`, id, delta).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, wrapStore("apply delta", err)
	}

	// The guarded update matched nothing: either the account is missing or the
	// debit would overdraw it.
	var exists bool
	if err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, wrapStore("apply delta", err)
	}
	if !exists {
		return 0, ErrAccountNotFound
	}
	return 0, ErrInsufficientFunds
}

// Deposit credits the account and appends a completed deposit transaction in one commit.
func (l *PostgresLedger) Deposit(ctx context.Context, accountID string, amount int64, method, description string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("amount must be positive")
	}
	id, err := uuid.Parse(accountID)
	if err != nil {
		return Transaction{}, ErrAccountNotFound
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, wrapStore("begin deposit", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := lockBalance(ctx, tx, id); err != nil {
		return Transaction{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2 WHERE id = $1`, id, amount); err != nil {
		return Transaction{}, wrapStore("credit account", err)
	}

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
	if err := insertTransaction(ctx, tx, record); err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, wrapStore("commit deposit", err)
	}
	return record, nil
}

// Transfer debits the sender and credits the receiver as one unit, appending a
// completed transfer transaction. Row locks are taken in id order so two
// opposing transfers cannot deadlock, and the balance check runs against the
// locked authoritative row, never a stale read.
func (l *PostgresLedger) Transfer(ctx context.Context, senderID, receiverID string, amount int64, description string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("amount must be positive")
	}
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, wrapStore("begin transfer", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	record, err := TransferInTx(ctx, tx, senderID, receiverID, amount, description)
	if err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, wrapStore("commit transfer", err)
	}
	return record, nil
}

// Transactions lists movements touching the account, newest first.
func (l *PostgresLedger) Transactions(ctx context.Context, accountID string) ([]Transaction, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, ErrAccountNotFound
	}
	rows, err := l.db.Query(ctx, `SELECT id, kind, amount, description,
        COALESCE(sender_id::text, ''), COALESCE(receiver_id::text, ''), COALESCE(method, ''),
        status, created_at, updated_at
        FROM transactions WHERE sender_id = $1 OR receiver_id = $1
        ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, wrapStore("list transactions", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		var txID uuid.UUID
		if err := rows.Scan(&txID, &t.Kind, &t.Amount, &t.Description, &t.SenderID,
			&t.ReceiverID, &t.Method, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, wrapStore("scan transaction", err)
		}
		t.ID = txID.String()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStore("list transactions", err)
	}
	return out, nil
}

// TransferInTx applies the debit, credit and log append on an open SQL
// transaction. The payment-code repository reuses it so a redemption commits
// together with the code transition.
func TransferInTx(ctx context.Context, tx pgx.Tx, senderID, receiverID string, amount int64, description string) (Transaction, error) {
	sender, err := uuid.Parse(senderID)
	if err != nil {
		return Transaction{}, ErrAccountNotFound
	}
	receiver, err := uuid.Parse(receiverID)
	if err != nil {
		return Transaction{}, ErrAccountNotFound
	}

	first, second := sender, receiver
	if second.String() < first.String() {
		first, second = second, first
	}

	balances := map[uuid.UUID]int64{}
	for _, id := range []uuid.UUID{first, second} {
		balance, err := lockBalance(ctx, tx, id)
		if err != nil {
			return Transaction{}, err
		}
		balances[id] = balance
	}

	if balances[sender] < amount {
		return Transaction{}, ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance - $2 WHERE id = $1`, sender, amount); err != nil {
		return Transaction{}, wrapStore("debit sender", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2 WHERE id = $1`, receiver, amount); err != nil {
		return Transaction{}, wrapStore("credit receiver", err)
	}

	record := Transaction{
		ID:          uuid.NewString(),
		Kind:        KindTransfer,
		Amount:      amount,
		Description: description,
		SenderID:    sender.String(),
		ReceiverID:  receiver.String(),
		Status:      StatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	record.UpdatedAt = record.CreatedAt
	if err := insertTransaction(ctx, tx, record); err != nil {
		return Transaction{}, err
	}
	return record, nil
}

func lockBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int64, error) {
	var balance int64
	if err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, wrapStore("lock account", err)
	}
	return balance, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, record Transaction) error {
	var sender, receiver any
	if record.SenderID != "" {
		sender = record.SenderID
	}
	if record.ReceiverID != "" {
		receiver = record.ReceiverID
	}
	var method any
	if record.Method != "" {
		method = record.Method
	}
	_, err := tx.Exec(ctx, `INSERT INTO transactions
        (id, kind, amount, description, sender_id, receiver_id, method, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.Kind, record.Amount, record.Description, sender, receiver,
		method, record.Status, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return wrapStore("append transaction", err)
	}
	return nil
}

// wrapStore classifies infrastructure failures as retryable while keeping the
// cause available for logs. Domain sentinels are never wrapped.
func wrapStore(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
