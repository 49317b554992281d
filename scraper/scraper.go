package scraper

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"immo-scraper/config"
	"immo-scraper/metrics"
	"immo-scraper/models"
	"immo-scraper/services"
	"immo-scraper/utils"
)

// errRobotsDisallowed marks URLs skipped because robots.txt forbids them.
var errRobotsDisallowed = errors.New("disallowed by robots.txt")

// Scraper drives pagination over the index pages and detail-page extraction.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	fetcher Fetcher
	rules   SiteRules
	parser  *DetailParser
	robots  *RobotsGate
	limiter *rate.Limiter
	retry   *utils.RetryConfig
	metrics *metrics.Manager
	visited *utils.URLSet
}

// Option customises a Scraper.
type Option func(*Scraper)

// WithRules replaces the default site rules.
func WithRules(rules SiteRules) Option {
	return func(s *Scraper) { s.rules = rules }
}

// WithRobots makes every fetch consult robots.txt first.
func WithRobots(gate *RobotsGate) Option {
	return func(s *Scraper) { s.robots = gate }
}

// WithMetrics records fetch and extraction counters on m.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Scraper) { s.metrics = m }
}

// New creates a ready-to-use Scraper.
func New(cfg *config.Config, logger *utils.Logger, fetcher Fetcher, opts ...Option) *Scraper {
	s := &Scraper{
		cfg:     cfg,
		logger:  logger,
		fetcher: fetcher,
		rules:   DefaultRules(),
		limiter: utils.NewIntervalLimiter(cfg.RateLimitMs),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		visited: utils.NewURLSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = NewDetailParser(s.rules)
	return s
}

// Scrape collects listing URLs from every start URL, extracts one raw record
// per detail page and removes duplicates, keeping discovery order. It fails
// only when no start URL could be fetched at all.
func (s *Scraper) Scrape(ctx context.Context) ([]models.RawRecord, error) {
	s.logger.Info("[scraper] Starting scrape: %d start URLs, page cap %d, detail concurrency %d",
		len(s.cfg.StartURLs), s.cfg.PageCap, s.cfg.DetailConcurrency)

	urls, err := s.CollectListingURLs(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("[scraper] Discovered %d listing URLs", len(urls))

	records := s.ScrapeDetails(ctx, urls)
	deduped := services.Dedupe(records, services.RawIdentityKey)

	s.logger.Info("[scraper] Scrape complete: %d raw records (%d duplicates removed)",
		len(deduped), len(records)-len(deduped))
	return deduped, ctx.Err()
}

// CollectListingURLs paginates every start URL and returns the detail-page
// URLs in discovery order.
func (s *Scraper) CollectListingURLs(ctx context.Context) ([]string, error) {
	var out []string
	fetched := 0

	for _, start := range s.cfg.StartURLs {
		if ctx.Err() != nil {
			break
		}
		links, ok := s.collectFrom(ctx, start)
		if ok {
			fetched++
		}
		out = append(out, links...)
	}

	if len(s.cfg.StartURLs) > 0 && fetched == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrNoStartPage
	}
	s.logger.Info("[scraper] %d unique detail links from %d/%d start URLs",
		s.visited.Size(), fetched, len(s.cfg.StartURLs))
	return out, nil
}

// collectFrom walks one start URL. Page 1 is the start URL itself; pages
// 2..PageCap are synthesized from its trailing page segment. The walk stops at
// the first page that fails or brings no new links, keeping what was found.
func (s *Scraper) collectFrom(ctx context.Context, start string) ([]string, bool) {
	html, err := s.fetch(ctx, start, metrics.KindIndex)
	if err != nil {
		s.logger.Warn("[scraper] Start URL %s failed: %v", start, err)
		return nil, false
	}

	links := s.newLinks(html, start)
	s.logger.Info("[scraper] Page 1 of %s: %d links", start, len(links))
	if len(links) == 0 {
		return links, true
	}

	for page := 2; page <= s.cfg.PageCap; page++ {
		next, ok := PageURL(start, page, s.rules)
		if !ok {
			s.logger.Debug("[scraper] %s has no page segment, not paginating", start)
			break
		}

		html, err := s.fetch(ctx, next, metrics.KindIndex)
		if err != nil {
			s.logger.Warn("[scraper] Page %d (%s) failed, stopping: %v", page, next, err)
			break
		}

		fresh := s.newLinks(html, next)
		if len(fresh) == 0 {
			s.logger.Info("[scraper] Page %d returned no new links, stopping", page)
			break
		}
		links = append(links, fresh...)
		s.logger.Info("[scraper] Page %d done, %d links so far", page, len(links))
	}
	return links, true
}

// newLinks extracts detail links not seen earlier in this run.
func (s *Scraper) newLinks(html, pageURL string) []string {
	links, err := ExtractLinks(html, pageURL, s.rules)
	if err != nil {
		s.logger.Warn("[scraper] Cannot read index page %s: %v", pageURL, err)
		return nil
	}
	fresh := make([]string, 0, len(links))
	for _, l := range links {
		if s.visited.Add(l) {
			fresh = append(fresh, l)
		}
	}
	return fresh
}

// ScrapeDetails fetches and parses each detail page. Failures are logged and
// skipped. The result follows the order of urls whatever the concurrency.
func (s *Scraper) ScrapeDetails(ctx context.Context, urls []string) []models.RawRecord {
	results := make([]*models.RawRecord, len(urls))

	if s.cfg.DetailConcurrency <= 1 {
		for i, u := range urls {
			if ctx.Err() != nil {
				break
			}
			results[i] = s.scrapeDetail(ctx, u)
		}
	} else {
		pool := utils.NewWorkerPool(s.cfg.DetailConcurrency)
		for i, u := range urls {
			i, u := i, u
			pool.Submit(ctx, func(ctx context.Context) {
				results[i] = s.scrapeDetail(ctx, u)
			})
		}
		pool.Wait()
	}

	records := make([]models.RawRecord, 0, len(urls))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records
}

func (s *Scraper) scrapeDetail(ctx context.Context, url string) *models.RawRecord {
	html, err := s.fetch(ctx, url, metrics.KindDetail)
	if err != nil {
		s.logger.Warn("[scraper] Detail page %s skipped: %v", url, err)
		return nil
	}

	rec, err := s.parser.ParseDetail(html, url)
	if err != nil {
		s.metrics.ParseFailed()
		s.logger.Warn("[scraper] Detail page %s unparseable: %v", url, err)
		return nil
	}

	s.metrics.RecordScraped()
	s.logger.Debug("[scraper] Parsed %s", url)
	return &rec
}

// fetch applies robots rules and the politeness limiter, then fetches url with
// the configured retry policy.
func (s *Scraper) fetch(ctx context.Context, url, kind string) (string, error) {
	if s.robots != nil && !s.robots.Allowed(ctx, url) {
		s.metrics.FetchFailed(kind)
		return "", errRobotsDisallowed
	}

	var html string
	err := s.retry.Do(ctx, "fetch "+url, func() error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		html, err = s.fetcher.Fetch(ctx, url)
		return err
	})
	if err != nil {
		s.metrics.FetchFailed(kind)
		return "", err
	}
	s.metrics.PageFetched(kind)
	return html, nil
}
