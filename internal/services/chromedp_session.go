package services

import (
	"context"
	"encoding/json"
	"fmt"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

const (
	searchInputSelector = `input[name="q"]`
	feedSelector        = `div[role="feed"]`
	endOfListText       = "You've reached the end of the list."
	placeLinkPrefix     = "https://www.google.com/maps/place"
)

const consentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="I agree"]',
    'form[action*="consent"] button'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  return false;
})();`

const scrollScript = `(function () {
  const feed = document.querySelector('div[role="feed"]');
  if (feed) {
    feed.scrollBy(0, feed.offsetHeight);
  }
})();`

var endOfListScript = fmt.Sprintf(`(function () {
  const feed = document.querySelector('div[role="feed"]');
  if (!feed) {
    return false;
  }
  return Array.from(feed.querySelectorAll('span')).some(s => s.textContent.trim() === %q);
})();`, endOfListText)

var resultLinksScript = fmt.Sprintf(`(function () {
  return Array.from(document.querySelectorAll('a[href^=%q]')).map(a => a.href);
})();`, placeLinkPrefix)

const openResultScript = `(function (href) {
  const link = Array.from(document.querySelectorAll('a[href]')).find(a => a.href === href);
  if (!link) {
    return false;
  }
  link.click();
  return true;
})(%s);`

type chromedpSession struct {
	config      *common.BrowserConfig
	browserCtx  context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewChromedpSession launches a local Chrome and returns a session bound to its first tab.
func NewChromedpSession(ctx context.Context, config *common.BrowserConfig) (interfaces.BrowserSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if config.Locale != "" {
		opts = append(opts, chromedp.Flag("lang", config.Locale))
	}
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	s := &chromedpSession{
		config:      config,
		browserCtx:  browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}

	// The first Run allocates the browser and binds its lifetime to browserCtx, so it must not
	// go through run's cancellable child context.
	stop := context.AfterFunc(ctx, func() { s.Close() })
	err := chromedp.Run(browserCtx)
	stop()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return s, nil
}

// run executes actions in the browser tab while honouring cancellation of ctx.
func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (s *chromedpSession) Open(ctx context.Context, url string) error {
	actions := []chromedp.Action{network.Enable()}
	if s.config.AcceptLanguage != "" {
		actions = append(actions, network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": s.config.AcceptLanguage,
		}))
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.Evaluate(consentScript, nil),
	)
	return s.run(ctx, actions...)
}

func (s *chromedpSession) SubmitSearch(ctx context.Context, query string) error {
	return s.run(ctx,
		chromedp.WaitVisible(searchInputSelector, chromedp.ByQuery),
		chromedp.SetValue(searchInputSelector, "", chromedp.ByQuery),
		chromedp.SendKeys(searchInputSelector, query+kb.Enter, chromedp.ByQuery),
	)
}

func (s *chromedpSession) WaitForFeed(ctx context.Context) error {
	return s.run(ctx,
		chromedp.WaitVisible(feedSelector, chromedp.ByQuery),
		chromedp.ScrollIntoView(feedSelector, chromedp.ByQuery),
	)
}

func (s *chromedpSession) ScrollFeed(ctx context.Context) error {
	return s.run(ctx, chromedp.Evaluate(scrollScript, nil))
}

func (s *chromedpSession) FeedExhausted(ctx context.Context) (bool, error) {
	var exhausted bool
	err := s.run(ctx, chromedp.Evaluate(endOfListScript, &exhausted))
	return exhausted, err
}

func (s *chromedpSession) ResultLinks(ctx context.Context) ([]string, error) {
	var links []string
	if err := s.run(ctx, chromedp.Evaluate(resultLinksScript, &links)); err != nil {
		return nil, err
	}
	return links, nil
}

// OpenResult clicks the feed entry for link so the feed stays loaded; a link no longer present in
// the feed is navigated to directly.
func (s *chromedpSession) OpenResult(ctx context.Context, link string) error {
	encoded, err := json.Marshal(link)
	if err != nil {
		return err
	}

	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(openResultScript, encoded), &clicked)); err != nil {
		return err
	}
	if clicked {
		return nil
	}
	return s.run(ctx, chromedp.Navigate(link))
}

func (s *chromedpSession) DetailHTML(ctx context.Context) (string, error) {
	var content string
	err := s.run(ctx, chromedp.OuterHTML("html", &content, chromedp.ByQuery))
	return content, err
}

// CloseResult does nothing: clicking the next feed entry replaces the detail pane.
func (s *chromedpSession) CloseResult(ctx context.Context) error {
	return nil
}

func (s *chromedpSession) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	return nil
}
