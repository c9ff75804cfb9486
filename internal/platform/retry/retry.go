// Package retry is the single backoff policy shared by every external rail client.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/yungbote/forfeit-backend/internal/platform/httpx"
)

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Factor is the exponential multiplier. Ignored when Linear is set.
	Factor   float64
	MaxDelay time.Duration
	// Jitter is the +/- randomization fraction applied to each delay (0..1).
	Jitter float64
	Linear bool
}

// Exponential doubles the delay after each failed attempt.
func Exponential(maxAttempts int, base time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, BaseDelay: base, Factor: 2, MaxDelay: 10 * time.Second, Jitter: 0.2}
}

// Linear waits base, 2*base, 3*base, ...
func Linear(maxAttempts int, base time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, BaseDelay: base, MaxDelay: 30 * time.Second, Linear: true}
}

// Once performs a single attempt.
func Once() Policy { return Policy{MaxAttempts: 1} }

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.Factor < 1 {
		p.Factor = 1
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

// Delay returns the wait before attempt n+1, given n failed attempts (n >= 1), without jitter.
func (p Policy) Delay(n int) time.Duration {
	p = p.normalized()
	if n < 1 {
		n = 1
	}
	var d time.Duration
	if p.Linear {
		d = p.BaseDelay * time.Duration(n)
	} else {
		d = time.Duration(float64(p.BaseDelay) * math.Pow(p.Factor, float64(n-1)))
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Classifier decides whether an error is worth another attempt.
type Classifier func(error) bool

// Transient retries timeouts, 408, 429 and 5xx.
func Transient(err error) bool { return httpx.IsRetryableError(err) }

// RateLimitOnly retries 429s and nothing else.
func RateLimitOnly(err error) bool { return httpx.IsRateLimited(err) }

// Notify observes a failed attempt before the wait.
type Notify func(attempt int, err error, wait time.Duration)

type policyBackOff struct {
	p    Policy
	n    int
	hint time.Duration
}

func (b *policyBackOff) NextBackOff() time.Duration {
	b.n++
	d := b.p.Delay(b.n)
	if b.p.Jitter > 0 {
		delta := float64(d) * b.p.Jitter
		d = time.Duration(float64(d) - delta + rand.Float64()*2*delta)
	}
	if b.hint > d {
		d = b.hint
	}
	b.hint = 0
	return d
}

func (b *policyBackOff) Reset() {
	b.n = 0
	b.hint = 0
}

// Do runs op until it succeeds, returns an error the classifier rejects, or the
// policy's attempts are spent. The last error is returned unwrapped.
func Do[T any](ctx context.Context, p Policy, retryable Classifier, op func(ctx context.Context) (T, error), notify Notify) (T, error) {
	p = p.normalized()
	if retryable == nil {
		retryable = Transient
	}
	bo := &policyBackOff{p: p}
	attempt := 0

	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, opErr := op(ctx)
		if opErr == nil {
			return v, nil
		}
		if !retryable(opErr) {
			return v, backoff.Permanent(opErr)
		}
		bo.hint = httpx.RetryAfterHint(opErr)
		return v, opErr
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if notify != nil {
				notify(attempt, err, wait)
			}
		}),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return res, err
}
