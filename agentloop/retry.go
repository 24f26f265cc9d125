package agentloop

import (
	"context"
	"time"
)

// retryDelays is the bounded fixed-delay schedule applied to SDK calls the
// provider classifies as transient. Four attempts beyond the first, at
// 5s/10s/15s/20s — a flat ramp rather than exponential, since provider
// rate-limit windows reset on a human timescale, not a network one.
var retryDelays = []time.Duration{5 * time.Second, 10 * time.Second, 15 * time.Second, 20 * time.Second}

// withTransientRetry invokes fn, retrying on the fixed delay schedule while
// provider classifies the returned error as transient. Non-transient errors
// and a final exhausted transient error both return directly to the
// caller, which wraps them as a provider exception.
func withTransientRetry(ctx context.Context, provider Provider, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !provider.IsTransient(lastErr) || attempt >= len(retryDelays) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelays[attempt]):
		}
	}
}
