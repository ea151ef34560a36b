package services

import (
	"context"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"

	"github.com/ternarybob/arbor"
)

// NewSessionFactory returns a factory for the configured browser driver. Each call launches a new
// browser; the extractor closes it when the run ends.
func NewSessionFactory(config *common.BrowserConfig, logger arbor.ILogger) interfaces.SessionFactory {
	return func(ctx context.Context) (interfaces.BrowserSession, error) {
		logger.Debug().
			Str("driver", config.Driver).
			Str("locale", config.Locale).
			Msg("Launching browser session")

		switch config.Driver {
		case "playwright":
			return NewPlaywrightSession(ctx, config)
		case "chromedp", "":
			return NewChromedpSession(ctx, config)
		default:
			return nil, common.NewConfigurationError("unknown_driver", "unknown browser driver").WithDetails(config.Driver)
		}
	}
}
