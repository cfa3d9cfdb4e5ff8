package events

import (
	"context"
	"database/sql"
	"fmt"
)

// SequenceAllocator hands out the next event sequence number for use inside
// an open atomic unit. A locked counter row gives strict density (the
// default here); a database sequence or MAX(seq)+1 scan would only give
// monotonicity, with gaps possible on a rolled-back append.
type SequenceAllocator interface {
	// Next returns the next sequence number, consuming it for the
	// duration of tx. If tx rolls back the value is never observed by a
	// committed reader, which is what keeps the numbering dense.
	Next(ctx context.Context, tx *sql.Tx) (int64, error)
}

// LockedCounterAllocator implements strict, gap-free sequence assignment by
// taking a row lock on a single counter row for the duration of the caller's
// transaction. Sequence numbers form the dense set {1..N} with no gaps as
// long as every append uses this allocator inside the same transaction as
// its commit.
type LockedCounterAllocator struct{}

// Next locks the singleton counter row, increments it, and returns the new
// value. The row is seeded on first use with an upsert, so callers never
// need to provision event_sequence_counter ahead of time: the counter starts
// at 1 the first time any transaction calls Next.
func (LockedCounterAllocator) Next(ctx context.Context, tx *sql.Tx) (int64, error) {
	var next int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO event_sequence_counter (id, value) VALUES (1, 1)
		ON CONFLICT (id) DO UPDATE SET value = event_sequence_counter.value + 1
		RETURNING value`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("events: advance sequence counter: %w", err)
	}
	return next, nil
}
