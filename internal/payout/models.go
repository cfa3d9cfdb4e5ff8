package payout

import (
	"fmt"
	"time"

	"github.com/ruralpay/ledger/internal/events"
)

// Metadata is the caller-supplied opaque key/value bag attached to a
// payout, reusing the event log's JSONB-backed map type.
type Metadata = events.Payload

// Status is the payout's position in its state machine.
type Status string

const (
	Pending    Status = "PENDING"
	Processing Status = "PROCESSING"
	Completed  Status = "COMPLETED"
	Failed     Status = "FAILED"
	Cancelled  Status = "CANCELLED"
)

// IsTerminal reports whether s admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case Completed, Failed, Cancelled:
		return true
	default:
		return false
	}
}

// Request carries the immutable fields of a payout intake call. Two
// requests with the same IdempotencyKey must carry identical values in
// every other field, or intake reports IdempotencyConflict.
type Request struct {
	IdempotencyKey   string
	AmountCents      int64
	Currency         string
	RecipientAccount string
	RecipientName    string
	Description      string
	Metadata         Metadata
}

// Payout is the durable record driven by the state machine.
type Payout struct {
	ID                   string
	IdempotencyKey       string
	AmountCents          int64
	Currency             string
	RecipientAccount     string
	RecipientName        string
	Description          string
	Metadata             Metadata
	Status               Status
	LinkedTransactionID  *string
	ExternalPayoutID     *string
	ExternalReference    *string
	ErrorMessage         *string
	RetryCount           int
	CreatedAt            time.Time
	UpdatedAt            time.Time
	ProcessedAt          *time.Time
}

// sameImmutableFields reports whether req describes the same logical
// payout as p — every field but status/id/timestamps must match exactly.
func (p *Payout) sameImmutableFields(req Request) bool {
	if p.AmountCents != req.AmountCents || p.Currency != req.Currency {
		return false
	}
	if p.RecipientAccount != req.RecipientAccount || p.RecipientName != req.RecipientName {
		return false
	}
	if p.Description != req.Description {
		return false
	}
	return metadataEqual(p.Metadata, req.Metadata)
}

func metadataEqual(a, b Metadata) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		// metadata round-trips through JSONB as strings/numbers/bools/maps;
		// fmt formatting is good enough to compare decoded values here.
		if fmt.Sprint(v) != fmt.Sprint(bv) {
			return false
		}
	}
	return true
}
