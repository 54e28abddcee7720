package stripe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/stripe/stripe-go/v84"
)

type idempotencyKeyCtx struct{}

// WithIdempotencyKey attaches the caller's request key. Mutating calls that move
// money forward a key derived from it so Stripe replays instead of repeating them.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	key = strings.TrimSpace(key)
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// gatewayIdempotencyKey scopes the request key to one operation, since Stripe
// rejects a key reused across endpoints.
func gatewayIdempotencyKey(ctx context.Context, operation string) string {
	if ctx == nil {
		return ""
	}
	key, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	if key == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(operation + ":" + key))
	return hex.EncodeToString(sum[:])
}

func applyIdempotencyKey(ctx context.Context, params *stripe.Params, operation string) {
	if key := gatewayIdempotencyKey(ctx, operation); key != "" {
		params.SetIdempotencyKey(key)
	}
}
