// Package payout implements the exactly-once payout state machine: a
// row-locked lifecycle that coordinates the ledger, event log, and
// read-model projector as one atomic unit per transition, and never touches
// the ledger until a payout is about to commit as Completed.
package payout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/ledger/internal/audit"
	"github.com/ruralpay/ledger/internal/events"
	"github.com/ruralpay/ledger/internal/ledger"
	"github.com/ruralpay/ledger/internal/readmodel"
)

const (
	// CashAccountCode and LiabilityAccountCode name the two accounts fixed
	// at bootstrap; FinalizeSuccess always debits the liability account and
	// credits cash, per the accounting treatment for discharging an owed
	// liability.
	CashAccountCode      = "CASH_001"
	LiabilityAccountCode = "PAYOUT_LIABILITY_001"

	aggregateType = "payout"
)

// Queue is the work-enqueue capability Intake calls after a new payout
// commits. internal/worker provides the Redis-backed implementation; tests
// may supply a no-op or recording fake.
type Queue interface {
	Enqueue(ctx context.Context, workKind, key string) error
}

// Machine drives the payout lifecycle described in the transition table:
// Pending -> Processing -> {Completed, Failed} plus Pending -> Cancelled.
type Machine struct {
	db       *sql.DB
	ledger   *ledger.Service
	events   *events.Log
	queue    Queue
	audit    *audit.Logger
	maxRetry int
}

// NewMachine constructs a Machine. maxRetries bounds FinalizeFailure's
// retry budget before a payout is marked Failed; queue may be nil, in which
// case Intake skips enqueueing (useful for tests driving the machine by hand).
// auditLog may also be nil, in which case transitions are not audited.
func NewMachine(db *sql.DB, ledgerSvc *ledger.Service, eventLog *events.Log, queue Queue, auditLog *audit.Logger, maxRetries int) *Machine {
	return &Machine{db: db, ledger: ledgerSvc, events: eventLog, queue: queue, audit: auditLog, maxRetry: maxRetries}
}

// Intake performs idempotent payout creation: same key + same fields
// replays the existing payout (created=false); same key + different fields
// fails ErrIdempotencyConflict without mutating anything.
func (m *Machine) Intake(ctx context.Context, req Request) (p *Payout, created bool, err error) {
	if err := validateRequest(req); err != nil {
		return nil, false, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("payout: begin intake: %w", err)
	}
	defer tx.Rollback()

	existing, err := lockByIdempotencyKey(ctx, tx, req.IdempotencyKey)
	if err != nil && err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("payout: lock by idempotency key: %w", err)
	}
	if err == nil {
		if existing.sameImmutableFields(req) {
			return existing, false, nil
		}
		return nil, false, ErrIdempotencyConflict
	}

	now := time.Now()
	np := &Payout{
		ID:               uuid.NewString(),
		IdempotencyKey:   req.IdempotencyKey,
		AmountCents:      req.AmountCents,
		Currency:         req.Currency,
		RecipientAccount: req.RecipientAccount,
		RecipientName:    req.RecipientName,
		Description:      req.Description,
		Metadata:         req.Metadata,
		Status:           Pending,
		RetryCount:       0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	inserted, err := insertPayoutIfAbsent(ctx, tx, np)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// Lost the race to a concurrent Intake for the same new key. The
		// winner's row is committed and visible by the time ON CONFLICT DO
		// NOTHING resolves, so this lock will find it rather than block
		// forever.
		winner, err := lockByIdempotencyKey(ctx, tx, req.IdempotencyKey)
		if err != nil {
			return nil, false, fmt.Errorf("payout: lock by idempotency key after conflict: %w", err)
		}
		if winner.sameImmutableFields(req) {
			return winner, false, nil
		}
		return nil, false, ErrIdempotencyConflict
	}

	eventID := fmt.Sprintf("payout.created:%s", req.IdempotencyKey)
	if _, err := m.events.AppendEvent(ctx, tx, eventID, aggregateType, np.ID, "PayoutCreated", events.Payload{
		"idempotency_key":   np.IdempotencyKey,
		"amount_cents":      np.AmountCents,
		"currency":          np.Currency,
		"recipient_account": np.RecipientAccount,
	}); err != nil {
		return nil, false, fmt.Errorf("payout: append PayoutCreated: %w", err)
	}

	if err := readmodel.ApplyPayoutChange(ctx, tx, viewOf(np)); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("payout: commit intake: %w", err)
	}

	if m.audit != nil {
		m.audit.LogTransition(np.ID, "", np.AmountCents, string(Pending))
	}

	if m.queue != nil {
		if err := m.queue.Enqueue(ctx, "ProcessPayout", np.ID); err != nil {
			return np, true, fmt.Errorf("payout: enqueue processing for %s: %w", np.ID, err)
		}
	}

	return np, true, nil
}

// ClaimForProcessing moves a Pending payout to Processing. Terminal or
// already-Processing payouts are returned unchanged (a safe no-op for
// duplicate work-queue deliveries).
func (m *Machine) ClaimForProcessing(ctx context.Context, payoutID string) (*Payout, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("payout: begin claim: %w", err)
	}
	defer tx.Rollback()

	p, err := lockByID(ctx, tx, payoutID)
	if err != nil {
		return nil, err
	}

	if p.Status != Pending {
		return p, nil
	}

	p.Status = Processing
	p.UpdatedAt = time.Now()
	if err := updatePayoutStatus(ctx, tx, p); err != nil {
		return nil, err
	}

	eventID := fmt.Sprintf("payout.processing:%s", p.IdempotencyKey)
	if _, err := m.events.AppendEvent(ctx, tx, eventID, aggregateType, p.ID, "PayoutProcessingStarted", events.Payload{}); err != nil {
		return nil, fmt.Errorf("payout: append PayoutProcessingStarted: %w", err)
	}

	if err := readmodel.ApplyPayoutChange(ctx, tx, viewOf(p)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("payout: commit claim: %w", err)
	}
	if m.audit != nil {
		m.audit.LogTransition(p.ID, "", p.AmountCents, string(Processing))
	}
	return p, nil
}

// FinalizeSuccess links the payout to a balanced ledger transaction and
// marks it Completed. It is idempotent on externalID: repeated calls after
// Completed with the same external id are no-ops; a different external id
// is a conflict.
func (m *Machine) FinalizeSuccess(ctx context.Context, payoutID, externalID, externalReference string) (*Payout, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("payout: begin finalize success: %w", err)
	}
	defer tx.Rollback()

	p, err := lockByID(ctx, tx, payoutID)
	if err != nil {
		return nil, err
	}

	if p.Status == Completed {
		if p.ExternalPayoutID != nil && *p.ExternalPayoutID == externalID {
			return p, nil
		}
		return nil, ErrConflict
	}
	if p.Status == Failed || p.Status == Cancelled {
		return nil, ErrIllegalTransition
	}

	transactionID := ledgerTransactionID(p.IdempotencyKey)
	liabilityAccount, err := m.ledger.GetAccount(ctx, LiabilityAccountCode)
	if err != nil {
		return nil, fmt.Errorf("payout: resolve liability account: %w", err)
	}
	cashAccount, err := m.ledger.GetAccount(ctx, CashAccountCode)
	if err != nil {
		return nil, fmt.Errorf("payout: resolve cash account: %w", err)
	}

	debit := ledger.Leg{AccountID: liabilityAccount.ID, Cents: p.AmountCents, Currency: p.Currency}
	credit := ledger.Leg{AccountID: cashAccount.ID, Cents: p.AmountCents, Currency: p.Currency}
	description := fmt.Sprintf("payout %s to %s", p.IdempotencyKey, p.RecipientName)

	_, entries, err := m.ledger.CreateBalancedTransactionTx(ctx, tx, transactionID, debit, credit, description)
	if err != nil {
		return nil, fmt.Errorf("payout: create ledger transaction %s: %w", transactionID, err)
	}

	now := time.Now()
	p.Status = Completed
	p.LinkedTransactionID = &transactionID
	p.ExternalPayoutID = &externalID
	if externalReference != "" {
		p.ExternalReference = &externalReference
	}
	p.ProcessedAt = &now
	p.UpdatedAt = now
	if err := updatePayoutFinal(ctx, tx, p); err != nil {
		return nil, err
	}

	eventID := fmt.Sprintf("payout.completed:%s", p.IdempotencyKey)
	ev, err := m.events.AppendEvent(ctx, tx, eventID, aggregateType, p.ID, "PayoutCompleted", events.Payload{
		"transaction_id": transactionID,
		"external_id":    externalID,
	})
	if err != nil {
		return nil, fmt.Errorf("payout: append PayoutCompleted: %w", err)
	}

	if err := readmodel.ApplyLedgerEntries(ctx, tx, entries, ev.Sequence); err != nil {
		return nil, err
	}
	if err := readmodel.ApplyPayoutChange(ctx, tx, viewOf(p)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("payout: commit finalize success: %w", err)
	}
	if m.audit != nil {
		m.audit.LogTransition(p.ID, transactionID, p.AmountCents, string(Completed))
	}
	return p, nil
}

// FinalizeFailure records a failed processing attempt. If retryable and the
// retry budget remains, the payout stays Processing for the dispatcher to reschedule;
// otherwise it moves to the terminal Failed state.
func (m *Machine) FinalizeFailure(ctx context.Context, payoutID, errMessage string, retryable bool) (*Payout, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("payout: begin finalize failure: %w", err)
	}
	defer tx.Rollback()

	p, err := lockByID(ctx, tx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return p, nil
	}

	p.RetryCount++
	p.ErrorMessage = &errMessage
	p.UpdatedAt = time.Now()

	eventType := "PayoutRetryScheduled"
	if !retryable || p.RetryCount >= m.maxRetry {
		p.Status = Failed
		now := time.Now()
		p.ProcessedAt = &now
		eventType = "PayoutFailed"
	}

	if err := updatePayoutFailure(ctx, tx, p); err != nil {
		return nil, err
	}

	eventID := fmt.Sprintf("payout.failed:%s:%d", p.IdempotencyKey, p.RetryCount)
	if _, err := m.events.AppendEvent(ctx, tx, eventID, aggregateType, p.ID, eventType, events.Payload{
		"error_message": errMessage,
		"retry_count":   p.RetryCount,
	}); err != nil {
		return nil, fmt.Errorf("payout: append %s: %w", eventType, err)
	}

	if err := readmodel.ApplyPayoutChange(ctx, tx, viewOf(p)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("payout: commit finalize failure: %w", err)
	}
	if m.audit != nil {
		m.audit.LogError(p.ID, p.AmountCents, errors.New(errMessage))
		if p.Status == Failed {
			m.audit.LogTransition(p.ID, "", p.AmountCents, string(Failed))
		}
	}
	return p, nil
}

// Cancel moves a Pending payout to the terminal Cancelled state. Any other
// starting state fails ErrIllegalTransition.
func (m *Machine) Cancel(ctx context.Context, payoutID string) (*Payout, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("payout: begin cancel: %w", err)
	}
	defer tx.Rollback()

	p, err := lockByID(ctx, tx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != Pending {
		return nil, ErrIllegalTransition
	}

	now := time.Now()
	p.Status = Cancelled
	p.ProcessedAt = &now
	p.UpdatedAt = now
	if err := updatePayoutFinal(ctx, tx, p); err != nil {
		return nil, err
	}

	eventID := fmt.Sprintf("payout.cancelled:%s", p.IdempotencyKey)
	if _, err := m.events.AppendEvent(ctx, tx, eventID, aggregateType, p.ID, "PayoutCancelled", events.Payload{}); err != nil {
		return nil, fmt.Errorf("payout: append PayoutCancelled: %w", err)
	}

	if err := readmodel.ApplyPayoutChange(ctx, tx, viewOf(p)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("payout: commit cancel: %w", err)
	}
	if m.audit != nil {
		m.audit.LogTransition(p.ID, "", p.AmountCents, string(Cancelled))
	}
	return p, nil
}

// Get returns a payout by id without locking.
func (m *Machine) Get(ctx context.Context, payoutID string) (*Payout, error) {
	return getByID(ctx, m.db, payoutID)
}

// History returns every event recorded against payoutID, in sequence order.
func (m *Machine) History(ctx context.Context, payoutID string) ([]events.Event, error) {
	return m.events.ReadAggregateHistory(ctx, aggregateType, payoutID)
}

// List returns up to limit payouts ordered by (created_at, id), starting
// strictly after the given cursor.
func (m *Machine) List(ctx context.Context, sinceCreatedAt time.Time, sinceID string, limit int) ([]Payout, error) {
	return ListSince(ctx, m.db, sinceCreatedAt, sinceID, limit)
}

func ledgerTransactionID(idempotencyKey string) string {
	return fmt.Sprintf("payout_%s", idempotencyKey)
}

func viewOf(p *Payout) readmodel.PayoutView {
	return readmodel.PayoutView{
		PayoutID:         p.ID,
		IdempotencyKey:   p.IdempotencyKey,
		AmountCents:      p.AmountCents,
		Currency:         p.Currency,
		RecipientAccount: p.RecipientAccount,
		Status:           string(p.Status),
		CreatedAt:        p.CreatedAt,
		ProcessedAt:      p.ProcessedAt,
	}
}

func validateRequest(req Request) error {
	if req.IdempotencyKey == "" || len(req.IdempotencyKey) > 128 {
		return fmt.Errorf("%w: idempotency_key must be 1-128 chars", ErrValidation)
	}
	if req.AmountCents <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if req.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrValidation)
	}
	if req.RecipientAccount == "" {
		return fmt.Errorf("%w: recipient_account is required", ErrValidation)
	}
	if req.RecipientName == "" {
		return fmt.Errorf("%w: recipient_name is required", ErrValidation)
	}
	return nil
}
