package main

import (
	"errors"
	"net/url"
	"os"

	"github.com/urfave/cli/v2"

	"immo-scraper/api"
	"immo-scraper/config"
	"immo-scraper/metrics"
	"immo-scraper/pipeline"
	"immo-scraper/storage"
	"immo-scraper/utils"
)

// Exit statuses of the validate command.
const (
	exitMissingFile    = 2
	exitMissingColumns = 3
	exitNoRows         = 4
)

// app carries what every command needs once the configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	metrics *metrics.Manager
}

func (a *app) setup(c *cli.Context) error {
	cfg, err := config.Load(c.Context)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if c.Bool("verbose") {
		level = "debug"
	}

	a.cfg = cfg
	a.logger = utils.NewLoggerWith(utils.LoggerOptions{Level: level, JSON: cfg.LogJSON, Output: os.Stderr})
	a.metrics = metrics.New()
	return nil
}

func (a *app) runner() *pipeline.Runner {
	return pipeline.NewRunner(a.cfg, a.logger, a.metrics)
}

func (a *app) scrapeAction(c *cli.Context) error {
	_, err := a.runner().Scrape(c.Context)
	if errors.Is(err, pipeline.ErrNoStartURLs) {
		return nil
	}
	return err
}

func (a *app) cleanAction(c *cli.Context) error {
	_, err := a.runner().Clean(c.Context)
	return err
}

func (a *app) exportAction(c *cli.Context) error {
	_, err := a.runner().Export(c.Context)
	return err
}

func (a *app) validateAction(c *cli.Context) error {
	_, err := a.runner().Validate()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrMissingFile):
		return cli.Exit(err.Error(), exitMissingFile)
	case errors.Is(err, storage.ErrMissingColumns):
		return cli.Exit(err.Error(), exitMissingColumns)
	case errors.Is(err, storage.ErrNoRows):
		return cli.Exit(err.Error(), exitNoRows)
	default:
		return err
	}
}

func (a *app) summaryAction(c *cli.Context) error {
	q := url.Values{}
	for _, name := range []string{"min_price", "max_price", "city", "min_surface", "rooms", "limit"} {
		if v := c.String(name); v != "" {
			q.Set(name, v)
		}
	}
	filters, err := api.ParseFilters(q)
	if err != nil {
		return err
	}

	_, err = a.runner().Summary(c.Context, filters, c.App.Writer)
	return err
}

func (a *app) serveAction(c *cli.Context) error {
	r := a.runner()
	src, closeFn, err := r.Source(c.Context)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	return api.NewServer(src, a.logger, a.metrics).ListenAndServe(c.Context, a.cfg.Addr)
}

func (a *app) runAction(c *cli.Context) error {
	return a.runner().Run(c.Context)
}
