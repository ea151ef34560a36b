// -----------------------------------------------------------------------
// Selector drift probe: runs one maps search with either browser driver and
// reports whether every element the extractor depends on is still found.
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/playwright-community/playwright-go"
)

const searchURL = "https://www.google.com/maps?hl=en"

const (
	searchInput   = `input[name="q"]`
	feed          = `div[role="feed"]`
	resultLink    = `a[href^="https://www.google.com/maps/place"]`
	placeAddress  = `[data-item-id="address"]`
	placePhone    = `[data-item-id^="phone:tel:"]`
	placeWebsite  = `a[data-item-id="authority"]`
	endOfListText = "You've reached the end of the list."
)

type probe struct {
	name  string
	count int
}

func main() {
	driver := flag.String("driver", "playwright", "browser driver: playwright or chromedp")
	query := flag.String("query", "Dentist in Maadi", "search query")
	headless := flag.Bool("headless", true, "run the browser without a window")
	flag.Parse()

	log.SetFlags(log.Ltime)

	var (
		probes []probe
		err    error
	)
	switch *driver {
	case "playwright":
		probes, err = probePlaywright(*query, *headless)
	case "chromedp":
		probes, err = probeChromedp(*query, *headless)
	default:
		log.Fatalf("Unknown driver %q", *driver)
	}
	if err != nil {
		log.Fatalf("Probe failed: %v", err)
	}

	missing := 0
	log.Printf("========================================")
	for _, p := range probes {
		status := "ok"
		if p.count == 0 {
			status = "MISSING"
			missing++
		}
		log.Printf("%-14s %4d  %s", p.name, p.count, status)
	}
	log.Printf("========================================")

	if missing > 0 {
		os.Exit(1)
	}
}

func probePlaywright(query string, headless bool) ([]probe, error) {
	if err := playwright.Install(); err != nil {
		return nil, fmt.Errorf("could not install playwright: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
		Timeout:  playwright.Float(60000),
	})
	if err != nil {
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{Locale: playwright.String("en-US")})
	if err != nil {
		return nil, fmt.Errorf("could not create page: %w", err)
	}

	log.Printf("Navigating to %s", searchURL)
	if _, err := page.Goto(searchURL, playwright.PageGotoOptions{Timeout: playwright.Float(30000)}); err != nil {
		return nil, fmt.Errorf("could not navigate: %w", err)
	}

	var probes []probe
	count := func(name, selector string) {
		n, _ := page.Locator(selector).Count()
		probes = append(probes, probe{name: name, count: n})
	}

	count("search input", searchInput)
	if err := page.Locator(searchInput).Fill(query); err != nil {
		return probes, nil
	}
	_ = page.Keyboard().Press("Enter")

	if err := page.Locator(feed).First().WaitFor(playwright.LocatorWaitForOptions{Timeout: playwright.Float(30000)}); err != nil {
		log.Printf("Results feed never appeared: %v", err)
	}
	count("feed", feed)

	for i := 0; i < 30; i++ {
		_ = page.Locator(feed).First().Press("Space")
		page.WaitForTimeout(1000)
		if n, _ := page.GetByText(endOfListText).Count(); n > 0 {
			break
		}
	}
	n, _ := page.GetByText(endOfListText).Count()
	probes = append(probes, probe{name: "end of list", count: n})

	count("result links", resultLink)
	if err := page.Locator(resultLink).First().Click(); err == nil {
		page.WaitForTimeout(2000)
	}
	count("place h1", "h1")
	count("address", placeAddress)
	count("phone", placePhone)
	count("website", placeWebsite)

	return probes, nil
}

func probeChromedp(query string, headless bool) ([]probe, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("lang", "en-US"),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancel()

	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, 180*time.Second)
	defer cancel()

	var probes []probe
	count := func(name, selector string) {
		var n int
		_ = chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll(%q).length`, selector), &n))
		probes = append(probes, probe{name: name, count: n})
	}

	log.Printf("Navigating to %s", searchURL)
	if err := chromedp.Run(ctx,
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible(searchInput, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("could not navigate: %w", err)
	}
	count("search input", searchInput)

	if err := chromedp.Run(ctx,
		chromedp.SendKeys(searchInput, query+kb.Enter, chromedp.ByQuery),
		chromedp.WaitVisible(feed, chromedp.ByQuery),
	); err != nil {
		log.Printf("Results feed never appeared: %v", err)
	}
	count("feed", feed)

	endScript := fmt.Sprintf(`document.body.innerText.includes(%q)`, endOfListText)
	reached := false
	for i := 0; i < 30 && !reached; i++ {
		_ = chromedp.Run(ctx,
			chromedp.Evaluate(fmt.Sprintf(`(document.querySelector(%q) || {scrollBy(){}}).scrollBy(0, 5000)`, feed), nil),
			chromedp.Sleep(time.Second),
			chromedp.Evaluate(endScript, &reached),
		)
	}
	if reached {
		probes = append(probes, probe{name: "end of list", count: 1})
	} else {
		probes = append(probes, probe{name: "end of list"})
	}

	count("result links", resultLink)
	var href string
	_ = chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(`(document.querySelector(%q) || {}).href || ""`, resultLink), &href))
	if strings.TrimSpace(href) != "" {
		_ = chromedp.Run(ctx, chromedp.Navigate(href), chromedp.Sleep(3*time.Second))
	}
	count("place h1", "h1")
	count("address", placeAddress)
	count("phone", placePhone)
	count("website", placeWebsite)

	return probes, nil
}
