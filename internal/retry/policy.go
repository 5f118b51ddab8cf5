// Package retry provides the backoff used when connecting to build hosts.
package retry

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/kitbuilder/internal/config"
)

// Policy describes how often and how long to wait between connection attempts.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int // attempts after the first failure
}

// DefaultPolicy matches the ssh.retry defaults: linear from 2s, capped at 30s, two retries.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: 2 * time.Second, Max: 30 * time.Second, MaxRetries: 2}
}

// NewPolicy fills unset or unknown fields from DefaultPolicy. Initial never exceeds Max.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	switch mode {
	case config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential:
		p.Mode = mode
	}
	p.Initial = min(p.Initial, p.Max)
	return p
}

// FromConfig builds a policy from the ssh.retry configuration section.
func FromConfig(rc config.RetryConfig) Policy {
	return NewPolicy(rc.Backoff, rc.Initial, rc.Max, rc.MaxRetries)
}

// Delay is the wait before retry n (1-based). Non-positive n waits zero.
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		if n-1 >= 63 || p.Initial > p.Max>>(n-1) {
			return p.Max
		}
		d = p.Initial << (n - 1)
	default:
		d = time.Duration(n) * p.Initial
	}
	return min(d, p.Max)
}

// Do runs fn until it succeeds, the policy is exhausted, retryable reports
// false for the returned error, or ctx is done. onRetry, when non-nil, is
// called before each wait with the 1-based retry number and the last error.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, onRetry func(int, error), fn func() error) error {
	err := fn()
	for attempt := 1; err != nil && attempt <= p.MaxRetries; attempt++ {
		if retryable != nil && !retryable(err) {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}
		err = fn()
	}
	return err
}
