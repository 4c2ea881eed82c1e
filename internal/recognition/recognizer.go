// Package recognition implements the hierarchical external recognition
// cascade (spec.md §4.5): service A (fingerprint lookup) tried first,
// service B (audio identification) tried only if A comes back empty,
// each behind its own rate limiter and retry policy. Called only after
// the Local Matcher (internal/fingerprint.Index) has already missed.
package recognition

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/zfogg/sidechain/backend/internal/config"
	"github.com/zfogg/sidechain/backend/internal/ratelimit"
)

// IsrcKnownFunc reports whether isrc already resolves to a Track. The
// Recognizer takes this as a callback rather than depending on
// internal/registry directly, keeping the two packages free of an
// import cycle (registry is the one that depends on recognition, not
// the reverse).
type IsrcKnownFunc func(ctx context.Context, isrc string) bool

// Recognizer wraps both external services with rate limiting, retry,
// and the ISRC short-circuit rule: if service A returns a candidate
// whose ISRC is already known locally, service B is skipped entirely
// (spec.md §4.5).
type Recognizer struct {
	serviceA *ServiceAClient
	serviceB *ServiceBClient

	limiterA *ratelimit.Limiter
	limiterB *ratelimit.Limiter

	maxRetriesA int
	maxRetriesB int

	externalMinConfidence float64
	isrcKnown             IsrcKnownFunc
}

func New(cfg *config.Config, isrcKnown IsrcKnownFunc) *Recognizer {
	return &Recognizer{
		serviceA:              NewServiceAClient(cfg.ServiceA),
		serviceB:              NewServiceBClient(cfg.ServiceB),
		limiterA:              ratelimit.New(cfg.ServiceA.RateLimitPerS),
		limiterB:              ratelimit.New(cfg.ServiceB.RateLimitPerS),
		maxRetriesA:           cfg.ServiceA.MaxRetries,
		maxRetriesB:           cfg.ServiceB.MaxRetries,
		externalMinConfidence: cfg.ExternalMinConfidence,
		isrcKnown:             isrcKnown,
	}
}

// Recognize runs the A-then-B cascade for one unmatched segment. fpHash
// is the Feature Extractor's fingerprint digest; clip is a short raw
// PCM sample for service B, only read if A misses.
func (r *Recognizer) Recognize(ctx context.Context, fpHash string, durationS float64, clip []byte) (Outcome, error) {
	aCandidates, err := r.callA(ctx, fpHash, durationS)
	if err != nil && !isPermanent(err) {
		// Transient failure exhausted its retries: treat external
		// unavailability as fail-open (spec.md §7), fall through to B.
	}

	if best, ok := bestCandidate(aCandidates); ok && best.Score >= r.externalMinConfidence {
		if best.Descriptor.ISRC != "" && r.isrcKnown != nil && r.isrcKnown(ctx, best.Descriptor.ISRC) {
			return ExternalMatchOutcome(best.Descriptor, best.Score, MethodExternalA), nil
		}
		// Even without a known ISRC, a confident A hit still short-circuits
		// service B — B is a fallback, not a second opinion.
		return ExternalMatchOutcome(best.Descriptor, best.Score, MethodExternalA), nil
	}

	bCandidate, err := r.callB(ctx, clip)
	if err != nil && !isPermanent(err) {
		return NoMatchOutcome(), nil
	}
	if bCandidate == nil || bCandidate.Score < r.externalMinConfidence {
		return NoMatchOutcome(), nil
	}

	return ExternalMatchOutcome(bCandidate.Descriptor, bCandidate.Score, MethodExternalB), nil
}

func bestCandidate(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if preferCandidate(c, best) {
			best = c
		}
	}
	return best, true
}

// preferCandidate implements the tie-break spec.md §4.7 names for two
// candidates arriving for the same segment: prefer the one carrying an
// ISRC, then the higher confidence.
func preferCandidate(a, b Candidate) bool {
	aHasISRC := a.Descriptor.ISRC != ""
	bHasISRC := b.Descriptor.ISRC != ""
	if aHasISRC != bHasISRC {
		return aHasISRC
	}
	return a.Score > b.Score
}

func (r *Recognizer) callA(ctx context.Context, fpHash string, durationS float64) ([]Candidate, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetriesA; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		if err := r.limiterA.Wait(ctx); err != nil {
			return nil, err
		}
		candidates, err := r.serviceA.Recognize(ctx, fpHash, durationS)
		if err == nil {
			return candidates, nil
		}
		lastErr = err
		if isPermanent(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (r *Recognizer) callB(ctx context.Context, clip []byte) (*Candidate, error) {
	if len(clip) == 0 {
		return nil, nil
	}
	var lastErr error
	for attempt := 0; attempt <= r.maxRetriesB; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		if err := r.limiterB.Wait(ctx); err != nil {
			return nil, err
		}
		candidate, err := r.serviceB.Recognize(ctx, clip)
		if err == nil {
			return candidate, nil
		}
		lastErr = err
		if isPermanent(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func isPermanent(err error) bool {
	var perm *PermanentServiceError
	return errors.As(err, &perm)
}

// sleepBackoff waits an exponential-with-jitter interval before a retry
// attempt, same jitter shape the Stream Puller uses for reconnects,
// capped well under the recognizer's request timeout.
func sleepBackoff(ctx context.Context, attempt int) error {
	base := 200 * time.Millisecond
	backoff := time.Duration(math.Pow(2, float64(attempt))) * base
	if backoff > 5*time.Second {
		backoff = 5 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
	select {
	case <-time.After(backoff + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
