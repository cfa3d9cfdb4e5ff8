// Package ledger implements the double-entry ledger core: a catalog of
// immutable accounts, balanced two-entry transactions, and balance queries
// computed by aggregation rather than by materializing entries in memory.
//
// CreateBalancedTransactionTx writes through a caller-supplied *sql.Tx so
// that ledger writes, event appends, and read-model projection commit as one
// atomic unit — see internal/payout for the caller that stitches these
// together. CreateBalancedTransaction opens its own *sql.Tx, and
// CreateAccount writes through the connection pool directly.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/ledger/internal/money"
)

// Service implements the ledger core.
type Service struct {
	db *sql.DB
}

// NewService constructs a ledger Service bound to db.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetAccount looks up an account by id or code.
func (s *Service) GetAccount(ctx context.Context, idOrCode string) (*Account, error) {
	return getAccount(ctx, s.db, idOrCode)
}

func getAccount(ctx context.Context, q querier, idOrCode string) (*Account, error) {
	var a Account
	err := q.QueryRowContext(ctx, `
		SELECT id, code, account_type, normal_side, created_at
		FROM accounts
		WHERE id = $1 OR code = $1
		LIMIT 1`, idOrCode).Scan(&a.ID, &a.Code, &a.Type, &a.NormalSide, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUnknownAccount
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: lookup account %s: %w", idOrCode, err)
	}
	return &a, nil
}

func getAccountForUpdate(ctx context.Context, tx *sql.Tx, idOrCode string) (*Account, error) {
	var a Account
	err := tx.QueryRowContext(ctx, `
		SELECT id, code, account_type, normal_side, created_at
		FROM accounts
		WHERE id = $1 OR code = $1
		LIMIT 1
		FOR UPDATE`, idOrCode).Scan(&a.ID, &a.Code, &a.Type, &a.NormalSide, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUnknownAccount
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: lock account %s: %w", idOrCode, err)
	}
	return &a, nil
}

// CreateAccount inserts the account if code is absent; used only by bootstrap.
func (s *Service) CreateAccount(ctx context.Context, code string, typ AccountType) (*Account, error) {
	normalSide := NormalSideFor(typ)

	existing, err := s.GetAccount(ctx, code)
	if err == nil {
		return existing, nil
	}
	if err != ErrUnknownAccount {
		return nil, err
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, code, account_type, normal_side, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING`, id, code, typ, normalSide, time.Now())
	if err != nil {
		return nil, fmt.Errorf("ledger: create account %s: %w", code, err)
	}

	return s.GetAccount(ctx, code)
}

// CreateBalancedTransaction opens its own atomic unit and delegates to
// CreateBalancedTransactionTx. Prefer the Tx variant when the ledger write
// must commit alongside an event append and read-model projection.
func (s *Service) CreateBalancedTransaction(ctx context.Context, id string, debit, credit Leg, description string) (*Transaction, []Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: begin: %w", err)
	}
	defer tx.Rollback()

	txn, entries, err := s.CreateBalancedTransactionTx(ctx, tx, id, debit, credit, description)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("ledger: commit: %w", err)
	}
	return txn, entries, nil
}

// CreateBalancedTransactionTx creates a transaction of exactly two immutable
// entries — a debit leg and a credit leg of equal magnitude — within tx.
//
// It is idempotent on id: a second call with the same id and an identical
// (debit, credit, description) payload returns the existing transaction and
// its entries with no new rows. A second call with the same id and a
// different payload fails with ErrConflict.
func (s *Service) CreateBalancedTransactionTx(ctx context.Context, tx *sql.Tx, id string, debit, credit Leg, description string) (*Transaction, []Entry, error) {
	if debit.Cents <= 0 || credit.Cents <= 0 {
		return nil, nil, ErrNonPositiveAmount
	}
	if debit.Cents != credit.Cents || debit.Currency != credit.Currency {
		return nil, nil, ErrUnbalanced
	}

	existingTxn, existingEntries, err := lockTransaction(ctx, tx, id)
	if err != nil && err != sql.ErrNoRows {
		return nil, nil, fmt.Errorf("ledger: lock transaction %s: %w", id, err)
	}
	if err == nil {
		if entriesMatch(existingEntries, debit, credit) && existingTxn.Description == description {
			return existingTxn, existingEntries, nil
		}
		return nil, nil, ErrConflict
	}

	if _, err := getAccountForUpdate(ctx, tx, debit.AccountID); err != nil {
		return nil, nil, err
	}
	if _, err := getAccountForUpdate(ctx, tx, credit.AccountID); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_transactions (id, description, created_at)
		VALUES ($1, $2, $3)`, id, description, now); err != nil {
		return nil, nil, fmt.Errorf("ledger: insert transaction %s: %w", id, err)
	}

	debitEntry, err := insertEntry(ctx, tx, id, debit.AccountID, Debit, debit.Cents, debit.Currency, now)
	if err != nil {
		return nil, nil, err
	}
	creditEntry, err := insertEntry(ctx, tx, id, credit.AccountID, Credit, credit.Cents, credit.Currency, now)
	if err != nil {
		return nil, nil, err
	}

	return &Transaction{ID: id, Description: description, CreatedAt: now}, []Entry{debitEntry, creditEntry}, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, transactionID, accountID string, side Side, cents int64, currency string, createdAt time.Time) (Entry, error) {
	id := uuid.NewString()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, transaction_id, account_id, side, amount_cents, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, transactionID, accountID, side, cents, currency, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: insert entry for account %s: %w", accountID, err)
	}
	return Entry{
		ID:            id,
		TransactionID: transactionID,
		AccountID:     accountID,
		Side:          side,
		AmountCents:   cents,
		Currency:      currency,
		CreatedAt:     createdAt,
	}, nil
}

func lockTransaction(ctx context.Context, tx *sql.Tx, id string) (*Transaction, []Entry, error) {
	var t Transaction
	err := tx.QueryRowContext(ctx, `
		SELECT id, description, created_at
		FROM ledger_transactions
		WHERE id = $1
		FOR UPDATE`, id).Scan(&t.ID, &t.Description, &t.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, transaction_id, account_id, side, amount_cents, currency, created_at
		FROM ledger_entries
		WHERE transaction_id = $1
		ORDER BY created_at, id`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: read entries for %s: %w", id, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Side, &e.AmountCents, &e.Currency, &e.CreatedAt); err != nil {
			return nil, nil, err
		}
		entries = append(entries, e)
	}
	return &t, entries, rows.Err()
}

func entriesMatch(entries []Entry, debit, credit Leg) bool {
	if len(entries) != 2 {
		return false
	}
	var d, c *Entry
	for i := range entries {
		switch entries[i].Side {
		case Debit:
			d = &entries[i]
		case Credit:
			c = &entries[i]
		}
	}
	if d == nil || c == nil {
		return false
	}
	return d.AccountID == debit.AccountID && d.AmountCents == debit.Cents && d.Currency == debit.Currency &&
		c.AccountID == credit.AccountID && c.AmountCents == credit.Cents && c.Currency == credit.Currency
}

// GetAccountBalance returns the account's balance from the read model
// (internal/readmodel keeps AccountBalance up to date in-transaction).
func (s *Service) GetAccountBalance(ctx context.Context, accountID string) (money.Amount, error) {
	var cents int64
	var currency string
	err := s.db.QueryRowContext(ctx, `
		SELECT balance_cents, currency FROM account_balances WHERE account_id = $1`, accountID).
		Scan(&cents, &currency)
	if err == sql.ErrNoRows {
		return money.Zero("USD"), nil
	}
	if err != nil {
		return money.Amount{}, fmt.Errorf("ledger: read balance for %s: %w", accountID, err)
	}
	return money.FromCents(cents, currency), nil
}

// ForceRefreshBalance recomputes an account's balance directly from ledger
// entries via a single aggregation query, bypassing the read model, for
// operators who suspect read-model drift. Projector.Rebuild does not call it;
// it runs its own aggregation.
func (s *Service) ForceRefreshBalance(ctx context.Context, accountID string) (money.Amount, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return money.Amount{}, err
	}

	var currency sql.NullString
	if err := s.db.QueryRowContext(ctx, `
		SELECT currency FROM ledger_entries WHERE account_id = $1 LIMIT 1`, account.ID).Scan(&currency); err != nil && err != sql.ErrNoRows {
		return money.Amount{}, fmt.Errorf("ledger: currency lookup for %s: %w", account.ID, err)
	}
	curr := "USD"
	if currency.Valid {
		curr = currency.String
	}

	var signedTotal int64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN side = $2 THEN amount_cents ELSE -amount_cents END), 0)
		FROM ledger_entries
		WHERE account_id = $1`, account.ID, account.NormalSide).Scan(&signedTotal)
	if err != nil {
		return money.Amount{}, fmt.Errorf("ledger: aggregate balance for %s: %w", account.ID, err)
	}

	return money.FromCents(signedTotal, curr), nil
}

// StreamEntries returns up to limit entries for accountID ordered by
// (created_at, id), starting strictly after the given cursor. Pass a zero
// time and empty id to read from the beginning.
func (s *Service) StreamEntries(ctx context.Context, accountID string, sinceCreatedAt time.Time, sinceID string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, account_id, side, amount_cents, currency, created_at
		FROM ledger_entries
		WHERE account_id = $1 AND (created_at, id) > ($2, $3)
		ORDER BY created_at, id
		LIMIT $4`, accountID, sinceCreatedAt, sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: stream entries for %s: %w", accountID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Side, &e.AmountCents, &e.Currency, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AllEntries returns every ledger entry ordered by (created_at, id), loaded
// into memory at once; StreamEntries pages through one account's entries.
func (s *Service) AllEntries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, account_id, side, amount_cents, currency, created_at
		FROM ledger_entries
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("ledger: read all entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Side, &e.AmountCents, &e.Currency, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AllAccounts returns the full account catalog.
func (s *Service) AllAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, account_type, normal_side, created_at FROM accounts ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("ledger: read accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Type, &a.NormalSide, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// querier is satisfied by both *sql.DB and *sql.Tx for read-only helpers.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
