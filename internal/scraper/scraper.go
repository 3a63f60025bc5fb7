package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"github.com/141286/SWG-introduction-to-R/internal/config"
	"github.com/141286/SWG-introduction-to-R/internal/dataprocessing"
	"github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// Config controls the headless browser.
type Config struct {
	Headless          bool
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
}

// DefaultConfig returns headless scraping at one page per second.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		Timeout:           60 * time.Second,
		RequestsPerSecond: 1,
	}
}

// ConfigFrom maps the application's scraper settings.
func ConfigFrom(cfg config.ScraperConfig) Config {
	return Config{
		Headless:          cfg.Headless,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		UserAgent:         cfg.UserAgent,
	}
}

// Request names one table on one page.
type Request struct {
	URL string
	// Selector matches candidate tables, "table" when empty.
	Selector string
	// Index picks among the matches, zero based.
	Index   int
	Options dataprocessing.ReadOptions
}

// rawTable is what the extraction script returns. Header cells come from the
// first row holding th cells, or the first row when there is none.
type rawTable struct {
	Found bool       `json:"found"`
	Rows  [][]string `json:"rows"`
}

// Scraper extracts HTML tables with a headless browser.
type Scraper struct {
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
	fetch   func(ctx context.Context, url, js string, out *rawTable) error
}

// New creates a scraper. Page loads share one limiter so concurrent callers
// are paced together.
func New(cfg Config, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	s := &Scraper{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With(slog.String("component", "scraper")),
	}
	s.fetch = s.browserFetch
	return s
}

// Scrape loads req.URL and converts the selected table.
func (s *Scraper) Scrape(ctx context.Context, req Request) (domain.Table, error) {
	if req.URL == "" {
		return domain.Table{}, errors.NewAppValidationError("scrape: url is required")
	}
	if req.Index < 0 {
		return domain.Table{}, errors.NewAppValidationError("scrape: index must not be negative")
	}
	selector := req.Selector
	if selector == "" {
		selector = "table"
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return domain.Table{}, err
	}

	start := time.Now()
	var raw rawTable
	if err := s.fetch(ctx, req.URL, extractScript(selector, req.Index), &raw); err != nil {
		return domain.Table{}, errors.NewNetworkError("load page", err).WithContext("url", req.URL)
	}
	if !raw.Found {
		return domain.Table{}, errors.NewNotFoundError(fmt.Sprintf("table %d matching %q", req.Index, selector)).
			WithContext("url", req.URL)
	}

	table, err := dataprocessing.TableFromRows(raw.Rows, req.Options)
	if err != nil {
		return domain.Table{}, err
	}

	s.logger.InfoContext(ctx, "scraped table",
		slog.String("url", req.URL),
		slog.String("selector", selector),
		slog.Int("index", req.Index),
		slog.Int("rows", table.Len()),
		slog.Int("columns", len(table.Columns)),
		slog.Duration("duration", time.Since(start)))
	return table, nil
}

func (s *Scraper) browserFetch(ctx context.Context, url, js string, out *rawTable) error {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts, chromedp.Flag("headless", s.cfg.Headless))
	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, s.cfg.Timeout)
	defer cancelTimeout()

	return chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(js, out),
	)
}

// extractScript builds the in-page script returning a rawTable.
func extractScript(selector string, index int) string {
	return fmt.Sprintf(`(() => {
	const tables = document.querySelectorAll(%q);
	const table = tables[%d];
	if (!table) return {found: false, rows: []};
	const rows = Array.from(table.querySelectorAll('tr'))
		.map(tr => Array.from(tr.querySelectorAll('th, td')).map(c => c.innerText.trim()));
	return {found: true, rows: rows.filter(r => r.length > 0)};
})()`, selector, index)
}
