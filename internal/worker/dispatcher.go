package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ruralpay/ledger/internal/payout"
	"github.com/ruralpay/ledger/internal/provider"
)

// ProcessPayout is the only work kind the dispatcher currently recognizes.
const ProcessPayout = "ProcessPayout"

// workQueue is the subset of RedisQueue's behavior the dispatcher needs,
// narrow enough that tests can supply an in-memory fake.
type workQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (workKind, key string, err error)
	Ack(ctx context.Context, workKind, key string) error
	Enqueue(ctx context.Context, workKind, key string) error
}

// Dispatcher runs the payout processing loop: claim, call the external
// provider, finalize. Multiple Dispatcher processes may share one
// RedisQueue; within a process, Concurrency goroutines pull work
// independently, so ordering between different payouts is never guaranteed.
type Dispatcher struct {
	queue           workQueue
	machine         *payout.Machine
	provider        provider.Provider
	backoff         Backoff
	maxRetries      int
	claimTimeout    time.Duration
	providerTimeout time.Duration

	wg sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(queue *RedisQueue, machine *payout.Machine, prov provider.Provider, backoff Backoff, maxRetries int, claimTimeout, providerTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		queue:           queue,
		machine:         machine,
		provider:        prov,
		backoff:         backoff,
		maxRetries:      maxRetries,
		claimTimeout:    claimTimeout,
		providerTimeout: providerTimeout,
	}
}

// Run starts concurrency worker goroutines and blocks until ctx is
// cancelled, at which point it stops claiming new work and waits for
// in-flight units to finish their current step.
func (d *Dispatcher) Run(ctx context.Context, concurrency int) {
	for i := 0; i < concurrency; i++ {
		d.wg.Add(1)
		go d.loop(ctx, i)
	}
	<-ctx.Done()
	log.Println("[WORKER] shutdown signal received, draining in-flight work")
	d.wg.Wait()
}

func (d *Dispatcher) loop(ctx context.Context, workerID int) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		workKind, payoutID, err := d.queue.Dequeue(ctx, d.claimTimeout)
		if err == ErrQueueEmpty {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[WORKER-%d] dequeue error: %v", workerID, err)
			time.Sleep(d.backoff.Base)
			continue
		}

		if workKind != ProcessPayout {
			log.Printf("[WORKER-%d] unknown work kind %q, dropping", workerID, workKind)
			d.queue.Ack(ctx, workKind, payoutID)
			continue
		}

		d.processOne(ctx, workerID, payoutID)
	}
}

// processOne runs one attempt of the ProcessPayout unit: claim, call the
// provider, finalize. On a transient provider failure it requeues the
// payout id for another attempt after a backoff delay computed from the
// payout's retry count; a crash between the provider call and finalize is
// safe because the next attempt re-invokes the provider with the same
// idempotency key and the ledger is untouched until FinalizeSuccess commits.
func (d *Dispatcher) processOne(ctx context.Context, workerID int, payoutID string) {
	defer d.queue.Ack(ctx, ProcessPayout, payoutID)

	p, err := d.machine.ClaimForProcessing(ctx, payoutID)
	if err != nil {
		log.Printf("[WORKER-%d] claim failed for %s: %v", workerID, payoutID, err)
		return
	}
	if p.Status.IsTerminal() {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, d.providerTimeout)
	result, err := d.provider.Pay(callCtx, provider.Request{
		IdempotencyKey:   p.IdempotencyKey,
		AmountCents:      p.AmountCents,
		Currency:         p.Currency,
		RecipientAccount: p.RecipientAccount,
		RecipientName:    p.RecipientName,
	})
	cancel()

	if err == nil {
		if _, finalizeErr := d.machine.FinalizeSuccess(ctx, payoutID, result.ExternalID, result.ExternalReference); finalizeErr != nil {
			log.Printf("[WORKER-%d] finalize success failed for %s: %v", workerID, payoutID, finalizeErr)
		}
		return
	}

	retryable := provider.IsTransient(err)
	if !retryable && !provider.IsPermanent(err) {
		// Unclassified errors (network hiccups the provider adapter didn't
		// wrap) are treated as transient so the dispatcher keeps retrying up to the cap.
		retryable = true
	}

	failed, finalizeErr := d.machine.FinalizeFailure(ctx, payoutID, err.Error(), retryable)
	if finalizeErr != nil {
		log.Printf("[WORKER-%d] finalize failure failed for %s: %v", workerID, payoutID, finalizeErr)
		return
	}

	if failed.Status == payout.Processing {
		delay := d.backoff.Delay(failed.RetryCount)
		log.Printf("[WORKER-%d] retrying %s in %s (attempt %d)", workerID, payoutID, delay, failed.RetryCount)
		go func() {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			if requeueErr := d.queue.Enqueue(context.Background(), ProcessPayout, payoutID); requeueErr != nil {
				log.Printf("[WORKER-%d] requeue failed for %s: %v", workerID, payoutID, requeueErr)
			}
		}()
	}
}
