package provider

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Provider for tests. It deduplicates by
// IdempotencyKey like a real provider must, and lets tests script a
// per-key outcome (success, transient, permanent) before calling Pay.
type Fake struct {
	mu       sync.Mutex
	results  map[string]Result
	outcomes map[string]error // nil entry means "succeed"
	calls    map[string]int
}

// NewFake constructs an empty Fake that succeeds by default for any key
// not explicitly scripted with Fail.
func NewFake() *Fake {
	return &Fake{
		results:  make(map[string]Result),
		outcomes: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Fail scripts idempotencyKey to return err (wrap in *TransientError or
// *PermanentError) on every call until Succeed clears it.
func (f *Fake) Fail(idempotencyKey string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[idempotencyKey] = err
}

// Succeed clears any scripted failure for idempotencyKey.
func (f *Fake) Succeed(idempotencyKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.outcomes, idempotencyKey)
}

// CallCount returns how many times Pay was invoked for idempotencyKey.
func (f *Fake) CallCount(idempotencyKey string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[idempotencyKey]
}

func (f *Fake) Pay(ctx context.Context, req Request) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[req.IdempotencyKey]++

	if existing, ok := f.results[req.IdempotencyKey]; ok {
		return existing, nil
	}

	if err, ok := f.outcomes[req.IdempotencyKey]; ok && err != nil {
		return Result{}, err
	}

	result := Result{
		ExternalID:        fmt.Sprintf("fake:%s", req.IdempotencyKey),
		ExternalReference: "FAKE-ACSC",
	}
	f.results[req.IdempotencyKey] = result
	return result, nil
}
