package httpapi

import (
	"time"

	"github.com/ruralpay/ledger/internal/events"
	"github.com/ruralpay/ledger/internal/money"
	"github.com/ruralpay/ledger/internal/payout"
)

// createPayoutRequest is the JSON body of POST /api/payouts/.
type createPayoutRequest struct {
	IdempotencyKey   string         `json:"idempotency_key" validate:"required,max=128"`
	Amount           string         `json:"amount" validate:"required"`
	Currency         string         `json:"currency"`
	RecipientAccount string         `json:"recipient_account" validate:"required"`
	RecipientName    string         `json:"recipient_name" validate:"required"`
	Description      string         `json:"description"`
	Metadata         map[string]any `json:"metadata"`
}

// payoutResponse is the JSON representation of a payout returned by every
// payout-shaped endpoint.
type payoutResponse struct {
	ID                  string         `json:"id"`
	IdempotencyKey      string         `json:"idempotency_key"`
	Amount              string         `json:"amount"`
	Currency            string         `json:"currency"`
	RecipientAccount    string         `json:"recipient_account"`
	RecipientName       string         `json:"recipient_name"`
	Description         string         `json:"description,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	Status              string         `json:"status"`
	LedgerTransactionID *string        `json:"ledger_transaction_id,omitempty"`
	ExternalPayoutID    *string        `json:"external_payout_id,omitempty"`
	ExternalReference   *string        `json:"external_reference,omitempty"`
	ErrorMessage        *string        `json:"error_message,omitempty"`
	RetryCount          int            `json:"retry_count"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	ProcessedAt         *time.Time     `json:"processed_at,omitempty"`
}

func toPayoutResponse(p *payout.Payout) payoutResponse {
	amount := money.FromCents(p.AmountCents, p.Currency).String()
	return payoutResponse{
		ID:                  p.ID,
		IdempotencyKey:      p.IdempotencyKey,
		Amount:              amount,
		Currency:            p.Currency,
		RecipientAccount:    p.RecipientAccount,
		RecipientName:       p.RecipientName,
		Description:         p.Description,
		Metadata:            map[string]any(p.Metadata),
		Status:              string(p.Status),
		LedgerTransactionID: p.LinkedTransactionID,
		ExternalPayoutID:    p.ExternalPayoutID,
		ExternalReference:   p.ExternalReference,
		ErrorMessage:        p.ErrorMessage,
		RetryCount:          p.RetryCount,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
		ProcessedAt:         p.ProcessedAt,
	}
}

// eventResponse is the JSON representation of a single log entry.
type eventResponse struct {
	ID            string         `json:"id"`
	EventID       string         `json:"event_id"`
	Sequence      int64          `json:"sequence"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	EventType     string         `json:"event_type"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func toEventResponse(e events.Event) eventResponse {
	return eventResponse{
		ID:            e.ID,
		EventID:       e.EventID,
		Sequence:      e.Sequence,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		EventType:     e.EventType,
		Payload:       map[string]any(e.Payload),
		CreatedAt:     e.CreatedAt,
	}
}
