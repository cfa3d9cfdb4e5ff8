// Package receipt renders a scannable QR receipt for a payout and
// caches the rendered PNG in Redis for a short window so repeated fetches
// (a teller re-scanning, a customer re-opening a receipt page) skip
// re-encoding.
package receipt

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

const cacheTTL = 5 * time.Minute

// Renderer turns a payout id and its linked ledger transaction id into a
// base64-encoded QR PNG.
type Renderer struct {
	cache *redis.Client
}

// NewRenderer builds a Renderer. cache may be nil, in which case every
// receipt is rendered fresh.
func NewRenderer(cache *redis.Client) *Renderer {
	return &Renderer{cache: cache}
}

// Render encodes "payout:<id>;transaction:<txID>" as a QR code and returns
// the PNG as a base64 string.
func (r *Renderer) Render(ctx context.Context, payoutID, transactionID string) (string, error) {
	cacheKey := fmt.Sprintf("receipt:%s:%s", payoutID, transactionID)

	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, cacheKey).Result(); err == nil {
			return cached, nil
		}
	}

	payload := fmt.Sprintf("payout:%s;transaction:%s", payoutID, transactionID)
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("receipt: encode qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", fmt.Errorf("receipt: encode png: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	if r.cache != nil {
		r.cache.Set(ctx, cacheKey, encoded, cacheTTL)
	}

	return encoded, nil
}
