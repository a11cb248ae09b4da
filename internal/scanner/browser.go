package scanner

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/validation-engine/internal/model"
)

// DOMExtractor pulls a ScannedData out of one rendered page's outer HTML.
// Each browser-scanned platform supplies its own, built on goquery
// selectors tailored to that site's markup.
type DOMExtractor interface {
	Extract(doc *goquery.Document, pageURL string) (*model.ScannedData, error)
	IsNotFound(doc *goquery.Document, navigatedURL string) bool
}

// BrowserScanner drives a chromedp page to a product URL, waits for the
// document to settle, and hands the rendered HTML to a DOMExtractor.
//
// It deliberately waits on document.readyState rather than network-idle:
// many target sites hold long-poll/websocket connections open, which would
// make a network-idle wait hang or time out spuriously (grounded in the
// crawler package's html_scraper.go, which makes the same choice).
type BrowserScanner struct {
	Platform          model.Platform
	Extractor         DOMExtractor
	NavigationTimeout time.Duration
	Logger            arbor.ILogger
}

func (s *BrowserScanner) Method() model.ScanMethod { return model.ScanMethodBrowser }

func (s *BrowserScanner) Scan(ctx context.Context, targetURL string, page context.Context) (Outcome, error) {
	if page == nil {
		return Outcome{}, fmt.Errorf("browser scanner requires a page context")
	}

	timeout := s.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	navCtx, cancel := context.WithTimeout(page, timeout)
	defer cancel()

	var html string
	var navigatedURL string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(targetURL),
		chromedp.Poll("document.readyState === 'complete'", nil, chromedp.WithPollingTimeout(timeout)),
		chromedp.Location(&navigatedURL),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return Outcome{Source: s.Method()}, model.ClassifyScanError(fmt.Errorf("navigate %s: %w", targetURL, err))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Outcome{Source: s.Method()}, fmt.Errorf("parse rendered html: %w", model.ErrExtractionFailed)
	}

	if LooksNotFound(html) || s.Extractor.IsNotFound(doc, navigatedURL) || redirectedAwayFromDetail(targetURL, navigatedURL) {
		return Outcome{Success: true, IsNotFound: true, Source: s.Method()}, nil
	}

	data, err := s.Extractor.Extract(doc, navigatedURL)
	if err != nil {
		return Outcome{Source: s.Method()}, fmt.Errorf("extract: %w: %v", model.ErrExtractionFailed, err)
	}

	return Outcome{Success: true, Data: data, Source: s.Method()}, nil
}

func redirectedAwayFromDetail(requested, navigated string) bool {
	if navigated == "" {
		return false
	}
	reqURL, err1 := url.Parse(requested)
	navURL, err2 := url.Parse(navigated)
	if err1 != nil || err2 != nil {
		return false
	}
	return reqURL.Path != "" && navURL.Path != reqURL.Path && navURL.Path != ""
}
