package payout

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const payoutColumns = `id, idempotency_key, amount_cents, currency, recipient_account, recipient_name,
	description, metadata, status, linked_transaction_id, external_payout_id, external_reference,
	error_message, retry_count, created_at, updated_at, processed_at`

type row interface {
	Scan(dest ...any) error
}

func scanPayout(r row) (*Payout, error) {
	var p Payout
	if err := r.Scan(
		&p.ID, &p.IdempotencyKey, &p.AmountCents, &p.Currency, &p.RecipientAccount, &p.RecipientName,
		&p.Description, &p.Metadata, &p.Status, &p.LinkedTransactionID, &p.ExternalPayoutID, &p.ExternalReference,
		&p.ErrorMessage, &p.RetryCount, &p.CreatedAt, &p.UpdatedAt, &p.ProcessedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func lockByIdempotencyKey(ctx context.Context, tx *sql.Tx, key string) (*Payout, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE idempotency_key = $1 FOR UPDATE`, key)
	p, err := scanPayout(row)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("payout: lock by key %s: %w", key, err)
	}
	return p, nil
}

// insertPayoutIfAbsent inserts p unless a row with the same idempotency_key
// already exists, in which case it is a no-op. SELECT ... FOR UPDATE takes
// no lock on a row that doesn't exist yet, so two concurrent Intake calls
// for the same brand-new key can both pass the existence check; ON CONFLICT
// DO NOTHING makes the unique index itself the serialization point — the
// loser's insert affects zero rows instead of returning a 23505 error.
func insertPayoutIfAbsent(ctx context.Context, tx *sql.Tx, p *Payout) (inserted bool, err error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO payouts (id, idempotency_key, amount_cents, currency, recipient_account, recipient_name,
			description, metadata, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		p.ID, p.IdempotencyKey, p.AmountCents, p.Currency, p.RecipientAccount, p.RecipientName,
		p.Description, p.Metadata, p.Status, p.RetryCount, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("payout: insert %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payout: insert %s: rows affected: %w", p.ID, err)
	}
	return n == 1, nil
}

func lockByID(ctx context.Context, tx *sql.Tx, id string) (*Payout, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPayout(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payout: lock by id %s: %w", id, err)
	}
	return p, nil
}

func getByID(ctx context.Context, db *sql.DB, id string) (*Payout, error) {
	row := db.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)
	p, err := scanPayout(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payout: get %s: %w", id, err)
	}
	return p, nil
}

func updatePayoutStatus(ctx context.Context, tx *sql.Tx, p *Payout) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payouts SET status = $2, updated_at = $3 WHERE id = $1`,
		p.ID, p.Status, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("payout: update status %s: %w", p.ID, err)
	}
	return nil
}

func updatePayoutFailure(ctx context.Context, tx *sql.Tx, p *Payout) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payouts SET status = $2, retry_count = $3, error_message = $4, processed_at = $5, updated_at = $6
		WHERE id = $1`,
		p.ID, p.Status, p.RetryCount, p.ErrorMessage, p.ProcessedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("payout: update failure %s: %w", p.ID, err)
	}
	return nil
}

func updatePayoutFinal(ctx context.Context, tx *sql.Tx, p *Payout) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payouts SET status = $2, linked_transaction_id = $3, external_payout_id = $4,
			external_reference = $5, processed_at = $6, updated_at = $7
		WHERE id = $1`,
		p.ID, p.Status, p.LinkedTransactionID, p.ExternalPayoutID, p.ExternalReference, p.ProcessedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("payout: update final %s: %w", p.ID, err)
	}
	return nil
}

// ListSince returns up to limit payouts ordered by (created_at, id),
// starting strictly after the given cursor — the cursor-pagination scheme
// used by every list endpoint; OFFSET pagination is never used.
func ListSince(ctx context.Context, db *sql.DB, sinceCreatedAt time.Time, sinceID string, limit int) ([]Payout, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+payoutColumns+`
		FROM payouts
		WHERE (created_at, id) > ($1, $2)
		ORDER BY created_at, id
		LIMIT $3`, sinceCreatedAt, sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("payout: list since: %w", err)
	}
	defer rows.Close()

	var out []Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
