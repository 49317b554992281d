// Package pipeline runs the scrape, clean, export and validate stages. Stages
// communicate only through the files under the data directory, so each one can
// also run on its own.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"immo-scraper/config"
	"immo-scraper/metrics"
	"immo-scraper/models"
	"immo-scraper/scraper"
	"immo-scraper/services"
	"immo-scraper/storage"
	"immo-scraper/utils"
)

// ErrNoStartURLs is returned by Scrape when there is nothing to scrape.
var ErrNoStartURLs = errors.New("no start URLs configured")

// Runner executes pipeline stages for one configuration. Every log line of a
// Runner carries its run_id.
type Runner struct {
	cfg     *config.Config
	logger  *utils.Logger
	metrics *metrics.Manager
	runID   string

	fetcher scraper.Fetcher
	now     func() time.Time
}

// NewRunner creates a Runner with a fresh run id. m may be nil.
func NewRunner(cfg *config.Config, logger *utils.Logger, m *metrics.Manager) *Runner {
	id := uuid.NewString()
	return &Runner{
		cfg:     cfg,
		logger:  logger.With("run_id", id),
		metrics: m,
		runID:   id,
		now:     time.Now,
	}
}

// RunID identifies this run in logs.
func (r *Runner) RunID() string { return r.runID }

// Scrape crawls the configured start URLs and writes the raw store. It returns
// ErrNoStartURLs, without touching the raw store, when none are configured.
func (r *Runner) Scrape(ctx context.Context) (int, error) {
	if len(r.cfg.StartURLs) == 0 {
		r.logger.Warn("[pipeline] No start URLs configured (IMMO_START_URLS); skipping live scraping")
		return 0, ErrNoStartURLs
	}

	fetcher := r.fetcher
	var opts []scraper.Option
	if fetcher == nil {
		hf := scraper.NewHTTPFetcher(scraper.FetchOptions{
			UserAgent:      r.cfg.UserAgent,
			AcceptLanguage: r.cfg.AcceptLanguage,
			Timeout:        r.cfg.RequestTimeout,
			MaxBodyBytes:   r.cfg.MaxBodyBytes,
		})
		if r.cfg.RespectRobots {
			opts = append(opts, scraper.WithRobots(scraper.NewRobotsGate(hf.Client(), r.cfg.UserAgent)))
		}
		fetcher = hf
	}
	opts = append(opts, scraper.WithMetrics(r.metrics))

	s := scraper.New(r.cfg, r.logger, fetcher, opts...)
	records, err := s.Scrape(ctx)
	if err != nil {
		return 0, fmt.Errorf("pipeline: scrape: %w", err)
	}

	if err := storage.WriteRawStore(r.cfg.RawPath(), records, r.now()); err != nil {
		return 0, fmt.Errorf("pipeline: scrape: %w", err)
	}
	r.logger.Info("[pipeline] Raw store written: %s (%d records)", r.cfg.RawPath(), len(records))
	return len(records), nil
}

// Clean normalizes and deduplicates the raw store into the cleaned store and,
// when a database is configured, into the SQL store as well.
func (r *Runner) Clean(ctx context.Context) (services.CleanStats, error) {
	raw, err := storage.ReadRawStore(r.cfg.RawPath())
	if err != nil {
		return services.CleanStats{}, fmt.Errorf("pipeline: clean: %w", err)
	}

	cleaned, stats := services.NewCleaner(r.logger).Clean(raw.Items)
	r.metrics.Cleaned(stats.DroppedIdentity, stats.Duplicates)

	if err := storage.WriteCleanStore(r.cfg.CleanPath(), cleaned, r.now()); err != nil {
		return stats, fmt.Errorf("pipeline: clean: %w", err)
	}
	r.logger.Info("[pipeline] Cleaned store written: %s (%d records)", r.cfg.CleanPath(), len(cleaned))

	if r.cfg.DBDriver != "" {
		if err := r.writeTo(ctx, cleaned); err != nil {
			return stats, fmt.Errorf("pipeline: clean: %w", err)
		}
		r.logger.Info("[pipeline] %d records stored in %s (table: listings)", len(cleaned), r.cfg.DBDriver)
	}
	return stats, nil
}

// writeTo replaces the contents of the configured database sink.
func (r *Runner) writeTo(ctx context.Context, records []models.NormalizedRecord) error {
	store, err := storage.OpenSQLStore(ctx, r.cfg.DBDriver, r.cfg.DBDSN, r.logger)
	if err != nil {
		return err
	}
	var sink storage.ListingWriter = store
	defer sink.Close()
	return sink.Write(ctx, records)
}

// Export writes the cleaned store as the CSV dataset.
func (r *Runner) Export(ctx context.Context) (int, error) {
	clean, err := storage.ReadCleanStore(r.cfg.CleanPath())
	if err != nil {
		return 0, fmt.Errorf("pipeline: export: %w", err)
	}
	if err := storage.ExportCSV(ctx, r.cfg.CSVPath(), clean.Items); err != nil {
		return 0, fmt.Errorf("pipeline: export: %w", err)
	}
	r.logger.Info("[pipeline] CSV export written: %s (%d rows)", r.cfg.CSVPath(), len(clean.Items))
	return len(clean.Items), nil
}

// Validate checks the CSV dataset; see storage.Validate for the failure kinds.
func (r *Runner) Validate() (int, error) {
	n, err := storage.Validate(r.cfg.CSVPath())
	if err != nil {
		return 0, err
	}
	r.logger.Info("[pipeline] CSV OK: %d rows", n)
	return n, nil
}

// Run chains scrape, clean and export. Without start URLs it logs a warning
// and returns successfully.
func (r *Runner) Run(ctx context.Context) error {
	start := r.now()
	r.logger.Info("[pipeline] Run started")

	if _, err := r.Scrape(ctx); err != nil {
		if errors.Is(err, ErrNoStartURLs) {
			return nil
		}
		return err
	}
	if _, err := r.Clean(ctx); err != nil {
		return err
	}
	if _, err := r.Export(ctx); err != nil {
		return err
	}

	r.logger.Info("[pipeline] Run finished in %v", r.now().Sub(start).Round(time.Millisecond))
	return nil
}

// Source picks the dataset served to queries: the SQL store when a database is
// configured, else the remote CSV when its URL is set, else the local export.
// The returned close function must be called when done.
func (r *Runner) Source(ctx context.Context) (storage.DatasetSource, func() error, error) {
	noop := func() error { return nil }

	switch {
	case r.cfg.DBDriver != "":
		store, err := storage.OpenSQLStore(ctx, r.cfg.DBDriver, r.cfg.DBDSN, r.logger)
		if err != nil {
			return nil, noop, fmt.Errorf("pipeline: source: %w", err)
		}
		return store, store.Close, nil
	case r.cfg.CSVSourceURL != "":
		return storage.NewRemoteCSVSource(r.cfg.CSVSourceURL), noop, nil
	default:
		return &storage.CSVFileSource{Path: r.cfg.CSVPath()}, noop, nil
	}
}

// Summary loads the current dataset, filters it and prints its summary to w.
func (r *Runner) Summary(ctx context.Context, f models.Filters, w io.Writer) (models.Summary, error) {
	src, closeFn, err := r.Source(ctx)
	if err != nil {
		return models.Summary{}, err
	}
	defer func() { _ = closeFn() }()

	records, err := src.Load(ctx)
	if err != nil {
		return models.Summary{}, fmt.Errorf("pipeline: summary: %w", err)
	}

	agg := services.NewAggregator(r.logger)
	summary := agg.Aggregate(records, f)
	agg.Print(w, summary)
	return summary, nil
}
