package services

import (
	"context"
	"time"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// RetryPolicy is an exponential backoff schedule. Attempts counts the first call.
type RetryPolicy struct {
	Attempts    int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

func RetryPolicyFrom(cfg *common.RetryConfig) RetryPolicy {
	return RetryPolicy{
		Attempts:    cfg.Attempts,
		InitialWait: time.Duration(cfg.InitialWaitMs) * time.Millisecond,
		MaxWait:     time.Duration(cfg.MaxWaitMs) * time.Millisecond,
		Multiplier:  cfg.Multiplier,
	}
}

// Backoff returns the wait before retry number n (1-based).
func (p RetryPolicy) Backoff(n int) time.Duration {
	wait := float64(p.InitialWait)
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	for i := 1; i < n; i++ {
		wait *= multiplier
	}
	if p.MaxWait > 0 && wait > float64(p.MaxWait) {
		return p.MaxWait
	}
	return time.Duration(wait)
}

type retryingService struct {
	next   interfaces.ClassifierService
	policy RetryPolicy
	logger arbor.ILogger
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry repeats failed calls that IsRetryable accepts. A policy of one attempt or fewer
// returns next unchanged.
func WithRetry(next interfaces.ClassifierService, policy RetryPolicy, logger arbor.ILogger) interfaces.ClassifierService {
	if policy.Attempts <= 1 {
		return next
	}
	return &retryingService{
		next:   next,
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
	}
}

func (r *retryingService) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		text, err := r.next.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == r.policy.Attempts {
			break
		}

		wait := r.policy.Backoff(attempt)
		r.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("Classifier call failed, retrying")
		if err := r.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

type rateLimitedService struct {
	next    interfaces.ClassifierService
	limiter *rate.Limiter
}

// WithRateLimit delays calls so that no more than perSecond are started on average.
func WithRateLimit(next interfaces.ClassifierService, perSecond float64, burst int) interfaces.ClassifierService {
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedService{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (r *rateLimitedService) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Generate(ctx, prompt)
}
