// Package storage persists accounts and transfers in PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

var (
	// ErrAccountNotFound means the account id has no row.
	ErrAccountNotFound = errors.New("storage: account not found")
	// ErrInsufficientFunds means the debit would take the balance negative.
	ErrInsufficientFunds = errors.New("storage: insufficient funds")
)

// Account is one balance row. Balance is in cents.
type Account struct {
	ID      uuid.UUID `json:"id"`
	Owner   string    `json:"owner"`
	Balance int64     `json:"balance"`
}

// Transfer is one recorded balance movement.
type Transfer struct {
	ID        uuid.UUID `json:"id"`
	From      uuid.UUID `json:"from"`
	To        uuid.UUID `json:"to"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type Storage struct {
	DB *sql.DB
}

// NewStorage opens and pings the database.
func NewStorage(dsn string) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	return &Storage{DB: db}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			owner TEXT NOT NULL,
			balance BIGINT NOT NULL CHECK (balance >= 0)
		);
		CREATE TABLE IF NOT EXISTS transfers (
			id UUID PRIMARY KEY,
			from_account UUID NOT NULL,
			to_account UUID NOT NULL,
			amount BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// CreateAccount inserts an account with an opening balance.
func (s *Storage) CreateAccount(ctx context.Context, id uuid.UUID, owner string, balance int64) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO accounts (id, owner, balance) VALUES ($1, $2, $3)`, id, owner, balance)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// Account fetches one account row.
func (s *Storage) Account(ctx context.Context, id uuid.UUID) (Account, error) {
	var a Account

	err := s.DB.QueryRowContext(ctx,
		`SELECT id, owner, balance FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.Owner, &a.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}

	if err != nil {
		return Account{}, fmt.Errorf("query failed: %w", err)
	}

	return a, nil
}

// MoveFunds debits from and credits to inside one transaction. The debit
// update only matches when the balance covers the amount, so an overdraft
// rolls back as ErrInsufficientFunds.
func (s *Storage) MoveFunds(ctx context.Context, from, to uuid.UUID, amount int64) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - $1 WHERE id = $2 AND balance >= $1`, amount, from)
	if err != nil {
		return fmt.Errorf("debit failed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit failed: %w", err)
	}

	if n == 0 {
		if _, err := s.Account(ctx, from); errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}

		return ErrInsufficientFunds
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE id = $2`, amount, to)
	if err != nil {
		return fmt.Errorf("credit failed: %w", err)
	}

	if n, err = res.RowsAffected(); err != nil {
		return fmt.Errorf("credit failed: %w", err)
	} else if n == 0 {
		return ErrAccountNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

// InsertTransfer records a transfer keyed by its id. It reports false when
// the id was already recorded, which makes redelivered events harmless.
func (s *Storage) InsertTransfer(ctx context.Context, id, from, to uuid.UUID, amount int64, at time.Time) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO transfers (id, from_account, to_account, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`, id, from, to, amount, at)
	if err != nil {
		return false, fmt.Errorf("failed to insert transfer: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert transfer: %w", err)
	}

	return n > 0, nil
}

// ListTransfersPaginated retrieves transfers using cursor-based pagination,
// newest id last.
func (s *Storage) ListTransfersPaginated(ctx context.Context, cursor string, limit int) ([]Transfer, string, error) {
	query := `
		SELECT id, from_account, to_account, amount, created_at
		FROM transfers
		WHERE ($1::uuid IS NULL OR id > $1::uuid)
		ORDER BY id
		LIMIT $2`

	var (
		rows *sql.Rows
		err  error
	)

	if cursor == "" {
		rows, err = s.DB.QueryContext(ctx, query, nil, limit)
	} else {
		rows, err = s.DB.QueryContext(ctx, query, cursor, limit)
	}

	if err != nil {
		return nil, "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var (
		transfers []Transfer
		lastID    uuid.UUID
	)

	for rows.Next() {
		var t Transfer
		if err := rows.Scan(&t.ID, &t.From, &t.To, &t.Amount, &t.CreatedAt); err != nil {
			return nil, "", fmt.Errorf("scan failed: %w", err)
		}

		lastID = t.ID
		transfers = append(transfers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("query failed: %w", err)
	}

	nextCursor := ""
	if len(transfers) == limit {
		nextCursor = lastID.String()
	}

	return transfers, nextCursor, nil
}
