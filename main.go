package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	a := &app{}
	filterFlags := []cli.Flag{
		&cli.StringFlag{Name: "min_price", Usage: "minimum price per m²"},
		&cli.StringFlag{Name: "max_price", Usage: "maximum price per m²"},
		&cli.StringFlag{Name: "city", Usage: "case-insensitive substring of the location"},
		&cli.StringFlag{Name: "min_surface", Usage: "minimum surface in m²"},
		&cli.StringFlag{Name: "rooms", Usage: "exact number of rooms"},
		&cli.StringFlag{Name: "limit", Usage: "keep at most this many records"},
	}

	return &cli.App{
		Name:  "immo",
		Usage: "scrape, clean and aggregate rental listings",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log at debug level"},
		},
		Before: a.setup,
		Commands: []*cli.Command{
			{
				Name:   "scrape",
				Usage:  "crawl the start URLs and write the raw store",
				Action: a.scrapeAction,
			},
			{
				Name:   "clean",
				Usage:  "normalize and deduplicate the raw store",
				Action: a.cleanAction,
			},
			{
				Name:   "export",
				Usage:  "write the cleaned store as CSV",
				Action: a.exportAction,
			},
			{
				Name:   "validate",
				Usage:  "check the CSV export (exit 2: missing file, 3: missing columns, 4: zero rows)",
				Action: a.validateAction,
			},
			{
				Name:   "summary",
				Usage:  "print the summary of the current dataset",
				Flags:  filterFlags,
				Action: a.summaryAction,
			},
			{
				Name:   "serve",
				Usage:  "serve the query API",
				Action: a.serveAction,
			},
			{
				Name:   "run",
				Usage:  "scrape, clean and export in one go",
				Action: a.runAction,
			},
		},
	}
}
