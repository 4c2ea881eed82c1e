// Package ratelimit throttles outbound calls to the External Recognizer
// services (spec.md §4.5, §6 service_a/service_b rate limits). Each
// service gets its own token bucket sized from its configured
// requests-per-second ceiling.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate.Limiter with the Wait semantics
// the External Recognizer client needs: block until a token is
// available or the caller's context is cancelled, never drop a call
// silently.
type Limiter struct {
	limiter *rate.Limiter
}

// New builds a limiter allowing ratePerSecond requests/second with a
// burst of one — the External Recognizer calls are sequential per
// station, so bursting isn't needed.
func New(ratePerSecond float64) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
