// Package readmodel implements the read-model projector: denormalized rows that
// are always written inside the same atomic unit as the source data they
// derive from, so there is never a window where the read model contradicts
// the ledger, events, or payout tables.
package readmodel

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ruralpay/ledger/internal/ledger"
)

// Projector applies source writes to the read-model tables.
type Projector struct {
	db *sql.DB
}

// NewProjector constructs a Projector bound to db, used only for Rebuild
// (a top-level, standalone atomic unit); ApplyLedgerEntries and
// ApplyPayoutChange always run against a caller-supplied *sql.Tx.
func NewProjector(db *sql.DB) *Projector {
	return &Projector{db: db}
}

// ApplyLedgerEntries updates AccountBalance for every account touched by
// entries and inserts the LedgerTransactionSummary row for their shared
// transaction. entries must belong to exactly one transaction (the two legs
// the ledger service creates per call). asOfSequence is the sequence number of the event
// committed alongside this projection, recorded as the balance's watermark.
func ApplyLedgerEntries(ctx context.Context, tx *sql.Tx, entries []ledger.Entry, asOfSequence int64) error {
	if len(entries) == 0 {
		return nil
	}

	var debitAccount, creditAccount string
	var amountCents int64
	var currency string
	transactionID := entries[0].TransactionID

	for _, e := range entries {
		if err := applyBalanceDelta(ctx, tx, e, asOfSequence); err != nil {
			return err
		}
		switch e.Side {
		case ledger.Debit:
			debitAccount = e.AccountID
		case ledger.Credit:
			creditAccount = e.AccountID
		}
		amountCents = e.AmountCents
		currency = e.Currency
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_transaction_summaries (transaction_id, debit_account, credit_account, amount_cents, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transaction_id) DO NOTHING`,
		transactionID, debitAccount, creditAccount, amountCents, currency, entries[0].CreatedAt)
	if err != nil {
		return fmt.Errorf("readmodel: upsert transaction summary %s: %w", transactionID, err)
	}
	return nil
}

func applyBalanceDelta(ctx context.Context, tx *sql.Tx, e ledger.Entry, asOfSequence int64) error {
	var normalSide ledger.Side
	if err := tx.QueryRowContext(ctx, `SELECT normal_side FROM accounts WHERE id = $1`, e.AccountID).Scan(&normalSide); err != nil {
		return fmt.Errorf("readmodel: lookup normal side for %s: %w", e.AccountID, err)
	}

	delta := e.AmountCents
	if e.Side != normalSide {
		delta = -delta
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO account_balances (account_id, balance_cents, currency, as_of_sequence, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (account_id) DO UPDATE SET
			balance_cents = account_balances.balance_cents + EXCLUDED.balance_cents,
			currency = EXCLUDED.currency,
			as_of_sequence = EXCLUDED.as_of_sequence,
			updated_at = now()`,
		e.AccountID, delta, e.Currency, asOfSequence)
	if err != nil {
		return fmt.Errorf("readmodel: apply balance delta for %s: %w", e.AccountID, err)
	}
	return nil
}

// ApplyPayoutChange upserts the PayoutSummary row for a payout.
func ApplyPayoutChange(ctx context.Context, tx *sql.Tx, p PayoutView) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payout_summaries (payout_id, idempotency_key, amount_cents, currency, recipient_account, status, created_at, processed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (payout_id) DO UPDATE SET
			amount_cents = EXCLUDED.amount_cents,
			currency = EXCLUDED.currency,
			recipient_account = EXCLUDED.recipient_account,
			status = EXCLUDED.status,
			processed_at = EXCLUDED.processed_at,
			updated_at = now()`,
		p.PayoutID, p.IdempotencyKey, p.AmountCents, p.Currency, p.RecipientAccount, p.Status, p.CreatedAt, p.ProcessedAt)
	if err != nil {
		return fmt.Errorf("readmodel: upsert payout summary %s: %w", p.PayoutID, err)
	}
	return nil
}

// Rebuild recomputes every read-model row from ledger entries and payout
// rows only, discarding the current read-model contents first. The result
// must be row-equivalent to what incremental application of the same
// history would have produced; this implementation and
// ApplyLedgerEntries/ApplyPayoutChange are both driven by the same signed-sum-
// by-normal-side rule, so a rebuild and a fresh incremental replay agree.
//
// The per-account as_of_sequence watermark cannot be reconstructed exactly
// from ledger entries alone (entries don't carry the sequence number of the
// event they were projected under); Rebuild instead stamps every account
// with the event log's current maximum sequence number, which is a correct
// (if coarser) statement of "caught up to here".
func (p *Projector) Rebuild(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("readmodel: begin rebuild: %w", err)
	}
	defer tx.Rollback()

	var maxSeq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence_number), 0) FROM events`).Scan(&maxSeq); err != nil {
		return fmt.Errorf("readmodel: read max sequence: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM account_balances`); err != nil {
		return fmt.Errorf("readmodel: clear account_balances: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_transaction_summaries`); err != nil {
		return fmt.Errorf("readmodel: clear ledger_transaction_summaries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM payout_summaries`); err != nil {
		return fmt.Errorf("readmodel: clear payout_summaries: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO account_balances (account_id, balance_cents, currency, as_of_sequence, updated_at)
		SELECT a.id,
			COALESCE(SUM(CASE WHEN e.side = a.normal_side THEN e.amount_cents ELSE -e.amount_cents END), 0),
			COALESCE(MIN(e.currency), 'USD'),
			$1,
			now()
		FROM accounts a
		LEFT JOIN ledger_entries e ON e.account_id = a.id
		GROUP BY a.id`, maxSeq)
	if err != nil {
		return fmt.Errorf("readmodel: rebuild account_balances: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_transaction_summaries (transaction_id, debit_account, credit_account, amount_cents, currency, created_at)
		SELECT
			t.id,
			(SELECT account_id FROM ledger_entries WHERE transaction_id = t.id AND side = 'DEBIT' LIMIT 1),
			(SELECT account_id FROM ledger_entries WHERE transaction_id = t.id AND side = 'CREDIT' LIMIT 1),
			(SELECT amount_cents FROM ledger_entries WHERE transaction_id = t.id LIMIT 1),
			(SELECT currency FROM ledger_entries WHERE transaction_id = t.id LIMIT 1),
			t.created_at
		FROM ledger_transactions t`)
	if err != nil {
		return fmt.Errorf("readmodel: rebuild ledger_transaction_summaries: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payout_summaries (payout_id, idempotency_key, amount_cents, currency, recipient_account, status, created_at, processed_at, updated_at)
		SELECT id, idempotency_key, amount_cents, currency, recipient_account, status, created_at, processed_at, now()
		FROM payouts`)
	if err != nil {
		return fmt.Errorf("readmodel: rebuild payout_summaries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("readmodel: commit rebuild: %w", err)
	}
	return nil
}
