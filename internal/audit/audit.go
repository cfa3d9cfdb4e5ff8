// Package audit provides a structured, append-only audit trail for payout
// lifecycle transitions, distinct from the event log: the event log is
// source of truth replayed to rebuild state, while audit is a
// human-readable side channel for operators.
package audit

import (
	"encoding/json"
	"log"
	"time"
)

// Event is one audit record.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	PayoutID      string    `json:"payout_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	AmountCents   int64     `json:"amount_cents"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

// Logger writes Events to the process log.
type Logger struct{}

// NewLogger constructs a Logger.
func NewLogger() *Logger {
	return &Logger{}
}

// LogTransition records a payout state machine transition.
func (l *Logger) LogTransition(payoutID, transactionID string, amountCents int64, status string) {
	l.log(Event{
		Timestamp:     time.Now(),
		EventType:     "TRANSITION",
		PayoutID:      payoutID,
		TransactionID: transactionID,
		AmountCents:   amountCents,
		Status:        status,
	})
}

// LogError records a payout processing error.
func (l *Logger) LogError(payoutID string, amountCents int64, err error) {
	l.log(Event{
		Timestamp:   time.Now(),
		EventType:   "ERROR",
		PayoutID:    payoutID,
		AmountCents: amountCents,
		Status:      "FAILED",
		Details:     map[string]string{"error": err.Error()},
	})
}

// LogOperation records an administrative operation, e.g. bootstrap.
func (l *Logger) LogOperation(operation, details string) {
	l.log(Event{
		Timestamp: time.Now(),
		EventType: operation,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	})
}

func (l *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
