// Package events implements the ordered, idempotent event log: dense
// monotonic sequence numbers assigned inside the same atomic unit as the
// state change they describe, with dedup by caller-chosen event id.
package events

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Log implements the event log core.
type Log struct {
	db        *sql.DB
	allocator SequenceAllocator
}

// NewLog constructs a Log with the given sequence allocator.
func NewLog(db *sql.DB, allocator SequenceAllocator) *Log {
	if allocator == nil {
		allocator = LockedCounterAllocator{}
	}
	return &Log{db: db, allocator: allocator}
}

// AppendEvent assigns the next sequence number and inserts the event within
// tx. Must be called inside an active atomic unit shared with the state
// change the event describes. If eventID already exists the existing event
// is returned unchanged (idempotent retry, not an error).
func (l *Log) AppendEvent(ctx context.Context, tx *sql.Tx, eventID, aggregateType, aggregateID, eventType string, payload Payload) (*Event, error) {
	existing, err := l.lockByEventID(ctx, tx, eventID)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("events: lookup event %s: %w", eventID, err)
	}
	if err == nil {
		return existing, nil
	}

	seq, err := l.allocator.Next(ctx, tx)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	var createdAt sql.NullTime
	row := tx.QueryRowContext(ctx, `
		INSERT INTO events (id, event_id, sequence_number, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING created_at`,
		id, eventID, seq, aggregateType, aggregateID, eventType, payload)
	if err := row.Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("events: insert event %s: %w", eventID, err)
	}

	return &Event{
		ID:            id,
		EventID:       eventID,
		Sequence:      seq,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     createdAt.Time,
	}, nil
}

func (l *Log) lockByEventID(ctx context.Context, tx *sql.Tx, eventID string) (*Event, error) {
	var e Event
	err := tx.QueryRowContext(ctx, `
		SELECT id, event_id, sequence_number, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM events
		WHERE event_id = $1
		FOR UPDATE`, eventID).Scan(&e.ID, &e.EventID, &e.Sequence, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ReadEvents returns up to limit events with sequence_number > sinceSequence,
// strictly ordered by ascending sequence number.
func (l *Log) ReadEvents(ctx context.Context, sinceSequence int64, limit int) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, event_id, sequence_number, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM events
		WHERE sequence_number > $1
		ORDER BY sequence_number
		LIMIT $2`, sinceSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("events: read events since %d: %w", sinceSequence, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ReadAggregateHistory returns every event for one aggregate, ordered by sequence number.
func (l *Log) ReadAggregateHistory(ctx context.Context, aggregateType, aggregateID string) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, event_id, sequence_number, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM events
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY sequence_number`, aggregateType, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("events: read history for %s/%s: %w", aggregateType, aggregateID, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.EventID, &e.Sequence, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
