package workbook

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

const (
	// UserAgent for published-sheet requests
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// MinRequestInterval between two page loads
	MinRequestInterval = 2 * time.Second
)

// Fetcher renders published spreadsheets in a headless browser. Published
// sheets build their tables with JavaScript, so a plain HTTP GET is not
// enough.
type Fetcher struct {
	mu          sync.Mutex
	lastRequest time.Time
	interval    time.Duration
	timeout     time.Duration

	allocCtx context.Context
	cancel   context.CancelFunc
	log      *logrus.Entry
}

// NewFetcher starts a headless browser allocator
func NewFetcher() *Fetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(UserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		interval: MinRequestInterval,
		timeout:  45 * time.Second,
		allocCtx: allocCtx,
		cancel:   cancel,
		log:      logrus.WithField("component", "workbook-fetcher"),
	}
}

// Close releases the browser
func (f *Fetcher) Close() {
	if f.cancel != nil {
		f.cancel()
	}
}

// FetchPublished loads a published spreadsheet URL and parses its tables.
func (f *Fetcher) FetchPublished(ctx context.Context, url string) (*Workbook, error) {
	f.wait(ctx)

	html, err := f.render(ctx, url)
	if err != nil {
		return nil, err
	}

	wb, err := ParseHTML(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	f.log.WithField("sheets", len(wb.Sheets)).Infof("✓ Fetched %s", url)
	return wb, nil
}

func (f *Fetcher) wait(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.lastRequest.IsZero() {
		if wait := f.interval - time.Since(f.lastRequest); wait > 0 {
			f.log.Debugf("Rate limiting: waiting %v before next request", wait)
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
		}
	}
	f.lastRequest = time.Now()
}

func (f *Fetcher) render(ctx context.Context, url string) (string, error) {
	browserCtx, cancel := chromedp.NewContext(f.allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, f.timeout)
	defer cancel()

	// Stop the browser tab when the caller gives up.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var htmlContent string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`table`, chromedp.ByQuery),
		chromedp.Sleep(time.Second),
		chromedp.OuterHTML(`html`, &htmlContent, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp error: %w", err)
	}
	if htmlContent == "" {
		return "", fmt.Errorf("empty HTML content returned")
	}
	return htmlContent, nil
}
