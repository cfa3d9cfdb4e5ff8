package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: time.Second, Factor: 2, Cap: 60 * time.Second}

	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 4*time.Second, b.Delay(3))
	assert.Equal(t, 60*time.Second, b.Delay(10))
}

func TestEncodeDecodeItem_RoundTrips(t *testing.T) {
	item := encodeItem(ProcessPayout, "payout-123")
	kind, key, err := decodeItem(item)
	assert.NoError(t, err)
	assert.Equal(t, ProcessPayout, kind)
	assert.Equal(t, "payout-123", key)
}

func TestDecodeItem_RejectsMalformed(t *testing.T) {
	_, _, err := decodeItem("no-separator")
	assert.Error(t, err)
}
