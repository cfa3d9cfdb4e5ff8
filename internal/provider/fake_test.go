package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_DeduplicatesByIdempotencyKey(t *testing.T) {
	f := NewFake()
	req := Request{IdempotencyKey: "key-1", AmountCents: 500, Currency: "USD", RecipientAccount: "acct-1", RecipientName: "Jane Doe"}

	first, err := f.Pay(context.Background(), req)
	require.NoError(t, err)

	second, err := f.Pay(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, f.CallCount("key-1"))
}

func TestFake_ScriptedTransientFailure(t *testing.T) {
	f := NewFake()
	f.Fail("key-2", &TransientError{Err: errors.New("provider unavailable")})

	_, err := f.Pay(context.Background(), Request{IdempotencyKey: "key-2"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, IsPermanent(err))
}

func TestFake_ScriptedPermanentFailure(t *testing.T) {
	f := NewFake()
	f.Fail("key-3", &PermanentError{Err: errors.New("invalid recipient")})

	_, err := f.Pay(context.Background(), Request{IdempotencyKey: "key-3"})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.False(t, IsTransient(err))
}

func TestFake_SucceedClearsScriptedFailure(t *testing.T) {
	f := NewFake()
	f.Fail("key-4", &TransientError{Err: errors.New("timeout")})
	f.Succeed("key-4")

	result, err := f.Pay(context.Background(), Request{IdempotencyKey: "key-4"})
	require.NoError(t, err)
	assert.Equal(t, "fake:key-4", result.ExternalID)
}
