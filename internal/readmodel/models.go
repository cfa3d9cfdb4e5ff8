package readmodel

import "time"

// AccountBalance is the denormalized current balance of one account.
type AccountBalance struct {
	AccountID    string
	BalanceCents int64
	Currency     string
	AsOfSequence int64
	UpdatedAt    time.Time
}

// PayoutView is the subset of a payout's fields the projector needs. It is
// defined here (rather than importing internal/payout) so internal/payout
// can depend on internal/readmodel without a cycle.
type PayoutView struct {
	PayoutID         string
	IdempotencyKey   string
	AmountCents      int64
	Currency         string
	RecipientAccount string
	Status           string
	CreatedAt        time.Time
	ProcessedAt      *time.Time
}

// PayoutSummary is the denormalized payout row optimized for reads.
type PayoutSummary struct {
	PayoutID         string
	IdempotencyKey   string
	AmountCents      int64
	Currency         string
	RecipientAccount string
	Status           string
	CreatedAt        time.Time
	ProcessedAt      *time.Time
	UpdatedAt        time.Time
}

// LedgerTransactionSummary is the denormalized transaction row optimized for reads.
type LedgerTransactionSummary struct {
	TransactionID string
	DebitAccount  string
	CreditAccount string
	AmountCents   int64
	Currency      string
	CreatedAt     time.Time
}
