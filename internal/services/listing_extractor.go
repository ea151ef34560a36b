package services

import (
	"context"
	"fmt"
	"time"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"
	"clinic-leads-collector/internal/metrics"
	"clinic-leads-collector/internal/models"

	"github.com/ternarybob/arbor"
)

// ExtractionState is a step of the scroll-and-scrape state machine.
type ExtractionState string

const (
	StateStart           ExtractionState = "start"
	StateSearchSubmitted ExtractionState = "search_submitted"
	StateFeedLoaded      ExtractionState = "feed_loaded"
	StateFeedExhausted   ExtractionState = "feed_exhausted"
	StatePerListing      ExtractionState = "per_listing"
	StateDone            ExtractionState = "done"
	StateFailed          ExtractionState = "failed"
)

// ExtractorConfig holds the knobs of one extraction run.
type ExtractorConfig struct {
	SearchURL      string
	MaxResults     int
	ScrollDelay    time.Duration
	SettleDelay    time.Duration
	MaxScrollSteps int
	FeedTimeout    time.Duration
}

// ExtractorConfigFrom builds an ExtractorConfig from the scraper section of the configuration.
func ExtractorConfigFrom(cfg *common.ScraperConfig) ExtractorConfig {
	return ExtractorConfig{
		SearchURL:      cfg.SearchURL,
		MaxResults:     cfg.MaxResults,
		ScrollDelay:    cfg.ScrollDelay(),
		SettleDelay:    cfg.SettleDelay(),
		MaxScrollSteps: cfg.MaxScrollSteps,
		FeedTimeout:    cfg.FeedTimeout(),
	}
}

type listingExtractor struct {
	config     ExtractorConfig
	newSession interfaces.SessionFactory
	logger     arbor.ILogger
	observer   interfaces.RunObserver
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewListingExtractor creates an extractor that acquires one session per Extract call.
// observer may be nil.
func NewListingExtractor(config ExtractorConfig, newSession interfaces.SessionFactory, logger arbor.ILogger, observer interfaces.RunObserver) interfaces.ListingExtractor {
	return &listingExtractor{
		config:     config,
		newSession: newSession,
		logger:     logger,
		observer:   observer,
		sleep:      sleepContext,
	}
}

// Extract runs the state machine to completion. A session-level failure returns an error and no
// listings; a failure on a single listing is logged and that listing is skipped.
func (x *listingExtractor) Extract(ctx context.Context, query string) (*models.ExtractionResult, error) {
	run := &extraction{
		extractor: x,
		query:     query,
		result:    &models.ExtractionResult{Query: query},
	}
	run.transition(StateStart)

	session, err := x.newSession(ctx)
	if err != nil {
		run.transition(StateFailed)
		return nil, common.WrapError(err, common.ErrorTypeSession, "session_unavailable", "failed to start browser session")
	}
	run.session = session
	defer func() {
		if err := session.Close(); err != nil {
			x.logger.Warn().Err(err).Msg("Failed to close browser session")
		}
	}()

	steps := []func(context.Context) error{
		run.submitSearch,
		run.loadFeed,
		run.scrollToEnd,
		run.collectListings,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			run.transition(StateFailed)
			x.logger.Error().Err(err).Str("state", string(run.state)).Msg("Extraction aborted")
			return nil, err
		}
	}

	run.transition(StateDone)
	return run.result, nil
}

// extraction is the state of a single Extract call.
type extraction struct {
	extractor *listingExtractor
	session   interfaces.BrowserSession
	query     string
	state     ExtractionState
	result    *models.ExtractionResult
}

func (e *extraction) transition(to ExtractionState) {
	e.state = to
	e.result.Transitions = append(e.result.Transitions, string(to))
	e.extractor.logger.Debug().Str("state", string(to)).Msg("Extraction state")
	e.emit("extraction_state", map[string]interface{}{"state": string(to)})
}

func (e *extraction) emit(eventType string, data interface{}) {
	if e.extractor.observer != nil {
		e.extractor.observer.RunEvent(eventType, data)
	}
}

func (e *extraction) submitSearch(ctx context.Context) error {
	if err := e.session.Open(ctx, e.extractor.config.SearchURL); err != nil {
		return common.WrapError(err, common.ErrorTypeSession, "navigation_failed", "failed to open search page")
	}
	if err := e.session.SubmitSearch(ctx, e.query); err != nil {
		return common.WrapError(err, common.ErrorTypeSession, "search_failed", "failed to submit search query")
	}
	e.transition(StateSearchSubmitted)
	return nil
}

func (e *extraction) loadFeed(ctx context.Context) error {
	feedCtx := ctx
	if timeout := e.extractor.config.FeedTimeout; timeout > 0 {
		var cancel context.CancelFunc
		feedCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := e.session.WaitForFeed(feedCtx); err != nil {
		return common.WrapError(err, common.ErrorTypeSession, "feed_not_found", "results feed did not load")
	}
	e.transition(StateFeedLoaded)
	return nil
}

// scrollToEnd requests more results until the end-of-list marker shows, then scrolls once more
// because the feed can still be one page behind the marker.
func (e *extraction) scrollToEnd(ctx context.Context) error {
	x := e.extractor
	for {
		if err := e.scroll(ctx); err != nil {
			return err
		}
		if err := x.sleep(ctx, x.config.ScrollDelay); err != nil {
			return common.WrapError(err, common.ErrorTypeSession, "scroll_interrupted", "scrolling interrupted")
		}

		exhausted, err := e.session.FeedExhausted(ctx)
		if err != nil {
			return common.WrapError(err, common.ErrorTypeSession, "feed_check_failed", "failed to check for end of results")
		}
		if exhausted {
			if err := e.scroll(ctx); err != nil {
				return err
			}
			break
		}

		if x.config.MaxScrollSteps > 0 && e.result.ScrollSteps >= x.config.MaxScrollSteps {
			x.logger.Warn().
				Int("scroll_steps", e.result.ScrollSteps).
				Msg("Scroll limit reached before end of results")
			break
		}
	}

	e.transition(StateFeedExhausted)
	return nil
}

func (e *extraction) scroll(ctx context.Context) error {
	if err := e.session.ScrollFeed(ctx); err != nil {
		return common.WrapError(err, common.ErrorTypeSession, "scroll_failed", "failed to scroll results feed")
	}
	e.result.ScrollSteps++
	return nil
}

func (e *extraction) collectListings(ctx context.Context) error {
	x := e.extractor

	links, err := e.session.ResultLinks(ctx)
	if err != nil {
		return common.WrapError(err, common.ErrorTypeSession, "links_unavailable", "failed to read result links")
	}
	e.result.ResultLinks = len(links)
	if x.config.MaxResults > 0 && len(links) > x.config.MaxResults {
		links = links[:x.config.MaxResults]
	}

	x.logger.Info().
		Int("available", e.result.ResultLinks).
		Int("visiting", len(links)).
		Msg("Collecting listing details")

	e.transition(StatePerListing)

	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return common.WrapError(err, common.ErrorTypeSession, "run_cancelled", "extraction cancelled")
		}

		listing, err := e.readListing(ctx, link)
		if err != nil {
			e.result.ListingErrors++
			metrics.ListingErrors.Inc()
			x.logger.Warn().Err(err).Int("position", i).Str("maps_link", link).Msg("Skipping listing")
			e.emit("listing_failed", map[string]interface{}{"position": i, "maps_link": link, "error": err.Error()})
			continue
		}

		e.result.Listings = append(e.result.Listings, listing)
		metrics.ListingsExtracted.Inc()
		e.emit("listing_extracted", listing)
	}

	return nil
}

// readListing opens one result, waits for it to render and reads its fields.
func (e *extraction) readListing(ctx context.Context, link string) (models.RawListing, error) {
	x := e.extractor

	if err := e.session.OpenResult(ctx, link); err != nil {
		return models.RawListing{}, common.WrapError(err, common.ErrorTypeExtraction, "open_failed", "failed to open listing")
	}
	if err := x.sleep(ctx, x.config.SettleDelay); err != nil {
		return models.RawListing{}, err
	}

	content, err := e.session.DetailHTML(ctx)
	if err != nil {
		return models.RawListing{}, common.WrapError(err, common.ErrorTypeExtraction, "snapshot_failed", "failed to read listing detail")
	}

	listing, err := ParseListingDetail(content, link)
	if err != nil {
		return models.RawListing{}, common.WrapError(err, common.ErrorTypeExtraction, "parse_failed", "failed to parse listing detail")
	}

	if err := e.session.CloseResult(ctx); err != nil {
		return models.RawListing{}, common.WrapError(err, common.ErrorTypeExtraction, "close_failed", fmt.Sprintf("failed to close listing %q", listing.ClinicName))
	}

	return listing, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
