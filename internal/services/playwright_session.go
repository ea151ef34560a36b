package services

import (
	"context"
	"fmt"
	"time"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"

	"github.com/playwright-community/playwright-go"
)

const (
	searchInputXPath = `//input[@name="q"]`
	feedXPath        = `//div[@role="feed"]`
	resultLinkXPath  = `//a[contains(@href, "https://www.google.com/maps/place")]`
)

var endOfListXPath = fmt.Sprintf(`//div[@role="feed"]//span[text()=%q]`, endOfListText)

// defaultActionTimeout bounds a single playwright call when ctx carries no deadline.
const defaultActionTimeout = 30 * time.Second

type playwrightSession struct {
	config  *common.BrowserConfig
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

// NewPlaywrightSession starts a playwright driver and opens one page in a fresh browser context.
func NewPlaywrightSession(ctx context.Context, config *common.BrowserConfig) (interfaces.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	s := &playwrightSession{config: config, pw: pw}

	s.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(config.Headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOptions := playwright.BrowserNewContextOptions{
		JavaScriptEnabled: playwright.Bool(true),
	}
	if config.Locale != "" {
		contextOptions.Locale = playwright.String(config.Locale)
	}
	if config.AcceptLanguage != "" {
		contextOptions.ExtraHttpHeaders = map[string]string{"Accept-Language": config.AcceptLanguage}
	}
	if config.UserAgent != "" {
		contextOptions.UserAgent = playwright.String(config.UserAgent)
	}

	browserContext, err := s.browser.NewContext(contextOptions)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	s.page, err = browserContext.NewPage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return s, nil
}

// actionTimeout converts the time left on ctx into a playwright timeout in milliseconds.
func actionTimeout(ctx context.Context) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	remaining := defaultActionTimeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining = time.Until(deadline)
		if remaining <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	return playwright.Float(float64(remaining.Milliseconds())), nil
}

func (s *playwrightSession) Open(ctx context.Context, url string) error {
	ms, err := actionTimeout(ctx)
	if err != nil {
		return err
	}
	_, err = s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   ms,
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	return err
}

func (s *playwrightSession) SubmitSearch(ctx context.Context, query string) error {
	ms, err := actionTimeout(ctx)
	if err != nil {
		return err
	}
	if err := s.page.Locator(searchInputXPath).Fill(query, playwright.LocatorFillOptions{Timeout: ms}); err != nil {
		return err
	}
	return s.page.Keyboard().Press("Enter")
}

func (s *playwrightSession) WaitForFeed(ctx context.Context) error {
	ms, err := actionTimeout(ctx)
	if err != nil {
		return err
	}
	feed := s.page.Locator(feedXPath).First()
	if err := feed.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms,
	}); err != nil {
		return err
	}
	return feed.ScrollIntoViewIfNeeded()
}

// ScrollFeed presses Space on the focused feed, which pages it down and triggers lazy loading.
func (s *playwrightSession) ScrollFeed(ctx context.Context) error {
	ms, err := actionTimeout(ctx)
	if err != nil {
		return err
	}
	return s.page.Locator(feedXPath).First().Press("Space", playwright.LocatorPressOptions{Timeout: ms})
}

func (s *playwrightSession) FeedExhausted(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	count, err := s.page.Locator(endOfListXPath).Count()
	return count > 0, err
}

func (s *playwrightSession) ResultLinks(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	anchors, err := s.page.Locator(resultLinkXPath).All()
	if err != nil {
		return nil, err
	}

	links := make([]string, 0, len(anchors))
	for _, anchor := range anchors {
		href, err := anchor.GetAttribute("href")
		if err != nil {
			return nil, err
		}
		if href != "" {
			links = append(links, href)
		}
	}
	return links, nil
}

func (s *playwrightSession) OpenResult(ctx context.Context, link string) error {
	ms, err := actionTimeout(ctx)
	if err != nil {
		return err
	}

	anchor := s.page.Locator(fmt.Sprintf(`a[href=%q]`, link)).First()
	count, err := anchor.Count()
	if err != nil {
		return err
	}
	if count == 0 {
		_, err = s.page.Goto(link, playwright.PageGotoOptions{Timeout: ms})
		return err
	}
	return anchor.Click(playwright.LocatorClickOptions{Timeout: ms})
}

func (s *playwrightSession) DetailHTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.Content()
}

// CloseResult does nothing: clicking the next feed entry replaces the detail pane.
func (s *playwrightSession) CloseResult(ctx context.Context) error {
	return nil
}

func (s *playwrightSession) Close() error {
	var firstErr error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			firstErr = err
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
