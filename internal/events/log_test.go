package events

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendEvent_AssignsNextSequence(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := NewLog(db, nil)

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM events WHERE event_id = \\$1 FOR UPDATE").
		WithArgs("evt-1").
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery("INSERT INTO event_sequence_counter (.+) ON CONFLICT (.+) DO UPDATE SET value = event_sequence_counter.value \\+ 1 RETURNING value").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(5)))

	mock.ExpectQuery("INSERT INTO events").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	ev, err := log.AppendEvent(context.Background(), tx, "evt-1", "payout", "p1", "PayoutCreated", Payload{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), ev.Sequence)
	assert.Equal(t, "evt-1", ev.EventID)
}

func TestLog_AppendEvent_IdempotentOnEventID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := NewLog(db, nil)

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM events WHERE event_id = \\$1 FOR UPDATE").
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "sequence_number", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at"}).
			AddRow("row-1", "evt-1", int64(3), "payout", "p1", "PayoutCreated", []byte(`{}`), now))

	ev, err := log.AppendEvent(context.Background(), tx, "evt-1", "payout", "p1", "PayoutCreated", Payload{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), ev.Sequence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLog_ReadEvents_OrdersBySequence(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := NewLog(db, nil)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM events WHERE sequence_number > \\$1 ORDER BY sequence_number LIMIT \\$2").
		WithArgs(int64(0), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "sequence_number", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at"}).
			AddRow("r1", "e1", int64(1), "payout", "p1", "PayoutCreated", []byte(`{}`), now).
			AddRow("r2", "e2", int64(2), "payout", "p1", "PayoutProcessingStarted", []byte(`{}`), now))

	evs, err := log.ReadEvents(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, int64(1), evs[0].Sequence)
	assert.Equal(t, int64(2), evs[1].Sequence)
}
