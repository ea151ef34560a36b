package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedService fails with the queued errors in order, then replies with text.
type scriptedService struct {
	errs  []error
	text  string
	calls int
}

func (s *scriptedService) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	return s.text, nil
}

func newTestRetry(next *scriptedService, attempts int) (*retryingService, *[]time.Duration) {
	var waits []time.Duration
	service := WithRetry(next, RetryPolicy{
		Attempts:    attempts,
		InitialWait: 5 * time.Second,
		MaxWait:     30 * time.Second,
		Multiplier:  2,
	}, testLogger()).(*retryingService)
	service.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return service, &waits
}

func TestRetryRepeatsRetryableFailures(t *testing.T) {
	next := &scriptedService{
		errs: []error{
			&ServiceError{Provider: "gemini", StatusCode: 429},
			&ServiceError{Provider: "gemini", StatusCode: 503},
		},
		text: "{}",
	}
	service, waits := newTestRetry(next, 3)

	text, err := service.Generate(context.Background(), "prompt")
	if err != nil || text != "{}" {
		t.Fatalf("expected success after retries, got %q, %v", text, err)
	}
	if next.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", next.calls)
	}
	if len(*waits) != 2 || (*waits)[0] != 5*time.Second || (*waits)[1] != 10*time.Second {
		t.Fatalf("unexpected backoff waits: %v", *waits)
	}
}

func TestRetryStopsOnPermanentFailure(t *testing.T) {
	next := &scriptedService{errs: []error{&ServiceError{Provider: "openai", StatusCode: 400}}}
	service, waits := newTestRetry(next, 5)

	if _, err := service.Generate(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected the 400 to be returned")
	}
	if next.calls != 1 || len(*waits) != 0 {
		t.Fatalf("expected a single call without waiting, got %d calls and waits %v", next.calls, *waits)
	}
}

func TestRetryGivesUpAfterAttempts(t *testing.T) {
	failure := &ServiceError{Provider: "gemini", StatusCode: 500}
	next := &scriptedService{errs: []error{failure, failure, failure, failure}}
	service, _ := newTestRetry(next, 3)

	_, err := service.Generate(context.Background(), "prompt")
	if !errors.Is(err, failure) {
		t.Fatalf("expected the last failure, got %v", err)
	}
	if next.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", next.calls)
	}
}

func TestRetryDisabledReturnsServiceUnchanged(t *testing.T) {
	next := &scriptedService{}
	if service := WithRetry(next, RetryPolicy{Attempts: 1}, testLogger()); service != next {
		t.Fatalf("expected a single attempt policy to leave the service undecorated")
	}
}

func TestRetryPolicyBackoffIsCapped(t *testing.T) {
	policy := RetryPolicy{InitialWait: 5 * time.Second, MaxWait: 30 * time.Second, Multiplier: 2}

	for n, want := range map[int]time.Duration{1: 5 * time.Second, 2: 10 * time.Second, 3: 20 * time.Second, 4: 30 * time.Second, 9: 30 * time.Second} {
		if got := policy.Backoff(n); got != want {
			t.Fatalf("Backoff(%d): expected %s got %s", n, want, got)
		}
	}
}

func TestServiceErrorRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&ServiceError{StatusCode: 429}, true},
		{&ServiceError{StatusCode: 502}, true},
		{&ServiceError{StatusCode: 401}, false},
		{&ServiceError{Cause: errors.New("connection reset")}, true},
		{&ServiceError{Cause: context.Canceled}, false},
		{&ServiceError{Cause: context.DeadlineExceeded}, false},
		{ErrClassifierDisabled, false},
		{errors.New("gemini returned no candidates"), false},
	}
	for _, tc := range tests {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("IsRetryable(%v): expected %v got %v", tc.err, tc.want, got)
		}
	}
}

func TestRateLimitPassesThrough(t *testing.T) {
	next := &scriptedService{text: "{}"}
	service := WithRateLimit(next, 1000, 2)

	for i := 0; i < 2; i++ {
		if text, err := service.Generate(context.Background(), "prompt"); err != nil || text != "{}" {
			t.Fatalf("call %d: got %q, %v", i, text, err)
		}
	}
	if next.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", next.calls)
	}
}

func TestRateLimitHonoursCancellation(t *testing.T) {
	next := &scriptedService{text: "{}"}
	service := WithRateLimit(next, 0.001, 1)

	// Burst of one: the first call is free, the second would wait far past the deadline.
	if _, err := service.Generate(context.Background(), "prompt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := service.Generate(ctx, "prompt"); err == nil {
		t.Fatalf("expected the limiter to give up")
	}
	if next.calls != 1 {
		t.Fatalf("expected the limited call not to reach the service, got %d calls", next.calls)
	}
}
