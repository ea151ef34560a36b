package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"

	"github.com/ternarybob/arbor"
)

// ErrClassifierDisabled is returned by service clients that have no API key.
var ErrClassifierDisabled = errors.New("classifier api key not configured")

const maxErrorBody = 512

// ServiceError describes a failed call to a hosted classifier.
type ServiceError struct {
	Provider   string
	StatusCode int
	Body       string
	Cause      error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Cause)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether repeating the same request could succeed: rate limiting, server side
// failures and transport errors qualify, cancellation does not.
func (e *ServiceError) Retryable() bool {
	if e.StatusCode != 0 {
		return e.StatusCode == 429 || e.StatusCode >= 500
	}
	if e.Cause == nil {
		return false
	}
	return !errors.Is(e.Cause, context.Canceled) && !errors.Is(e.Cause, context.DeadlineExceeded)
}

// IsRetryable reports whether err carries a retryable ServiceError.
func IsRetryable(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr) && serviceErr.Retryable()
}

// NewClassifierService builds the configured provider client wrapped in the configured
// rate limit and retry decorators.
func NewClassifierService(cfg *common.ClassifierConfig, logger arbor.ILogger) (interfaces.ClassifierService, error) {
	var service interfaces.ClassifierService
	switch cfg.Provider {
	case "gemini", "":
		service = NewGeminiClient(cfg)
	case "openai":
		service = NewOpenAIClient(cfg)
	default:
		return nil, common.NewConfigurationError("unknown_provider", "unknown classifier provider").WithDetails(cfg.Provider)
	}

	if cfg.RequestsPerMinute > 0 {
		service = WithRateLimit(service, cfg.RequestsPerMinute/60, 1)
	}

	return WithRetry(service, RetryPolicyFrom(&cfg.Retry), logger), nil
}

func truncateBody(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > maxErrorBody {
		return body[:maxErrorBody] + "..."
	}
	return body
}
