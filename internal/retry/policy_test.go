package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/kitbuilder/internal/config"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffLinear || p.Initial != 2*time.Second || p.Max != 30*time.Second || p.MaxRetries != 2 {
		t.Fatalf("unexpected default policy %+v", p)
	}
}

func TestNewPolicy_ClampsInitialToMax(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != config.RetryBackoffFixed || p.MaxRetries != 5 {
		t.Fatalf("overrides not applied: %+v", p)
	}
}

func TestNewPolicy_UnknownModeFallsBack(t *testing.T) {
	p := NewPolicy("weird", 250*time.Millisecond, 500*time.Millisecond, 1)
	if p.Mode != config.RetryBackoffLinear {
		t.Fatalf("unknown mode should fall back to linear got %s", p.Mode)
	}
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(config.RetryConfig{Backoff: config.RetryBackoffExponential, Initial: time.Second, Max: 4 * time.Second, MaxRetries: 0})
	if p.Mode != config.RetryBackoffExponential || p.MaxRetries != 0 || p.Max != 4*time.Second {
		t.Fatalf("unexpected policy %+v", p)
	}
}

func TestDelay(t *testing.T) {
	ms := time.Millisecond
	cases := []struct {
		name   string
		policy Policy
		want   []time.Duration // delays for retries 1..n
	}{
		{"fixed", NewPolicy(config.RetryBackoffFixed, 100*ms, 500*ms, 3), []time.Duration{100 * ms, 100 * ms, 100 * ms}},
		{"linear", NewPolicy(config.RetryBackoffLinear, 100*ms, 250*ms, 5), []time.Duration{100 * ms, 200 * ms, 250 * ms, 250 * ms}},
		{"exponential", NewPolicy(config.RetryBackoffExponential, 50*ms, 160*ms, 5), []time.Duration{50 * ms, 100 * ms, 160 * ms, 160 * ms}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for i, want := range tc.want {
				if got := tc.policy.Delay(i + 1); got != want {
					t.Fatalf("retry %d: expected %v got %v", i+1, want, got)
				}
			}
			if d := tc.policy.Delay(0); d != 0 {
				t.Fatalf("retry 0 expected 0 got %v", d)
			}
		})
	}
}

func TestDelay_ExponentialOverflowCaps(t *testing.T) {
	p := NewPolicy(config.RetryBackoffExponential, time.Second, time.Minute, 100)
	if d := p.Delay(80); d != time.Minute {
		t.Fatalf("expected cap on overflow got %v", d)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 3)
	calls, retries := 0, 0
	err := p.Do(context.Background(), nil, func(int, error) { retries++ }, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 || retries != 2 {
		t.Fatalf("expected 3 calls/2 retries got %d/%d", calls, retries)
	}
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 5)
	permanent := errors.New("permission denied")
	calls := 0
	err := p.Do(context.Background(), func(err error) bool { return !errors.Is(err, permanent) }, nil, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected single attempt with permanent error, got %d calls err=%v", calls, err)
	}
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)
	calls := 0
	err := p.Do(context.Background(), nil, nil, func() error {
		calls++
		return errors.New("refused")
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected 3 attempts and an error, got %d calls err=%v", calls, err)
	}
}

func TestDo_HonoursContext(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, nil, nil, func() error { return errors.New("dial refused") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
}
