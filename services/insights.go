package services

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"immo-scraper/models"
	"immo-scraper/utils"
)

// Histogram widths, in euros per m² and in m².
const (
	PriceBinWidth   = 500
	SurfaceBinWidth = 10
)

// Aggregator filters a normalized dataset and computes its Summary.
type Aggregator struct {
	logger *utils.Logger
}

func NewAggregator(logger *utils.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// View filters records and aggregates the result. Rows and summary are
// computed from the same filtered slice.
func (a *Aggregator) View(records []models.NormalizedRecord, f models.Filters, source string) models.DatasetView {
	rows := ApplyFilters(records, f)
	a.logger.Debug("[aggregator] %d of %d records match filters", len(rows), len(records))
	return models.DatasetView{
		Meta:    models.Meta{Source: source},
		Summary: Summarize(rows),
		Rows:    rows,
	}
}

// Aggregate applies the filters and summarizes the remaining records.
func (a *Aggregator) Aggregate(records []models.NormalizedRecord, f models.Filters) models.Summary {
	return Summarize(ApplyFilters(records, f))
}

// ApplyFilters keeps records satisfying every set filter, then truncates to
// the limit. The input slice is not modified.
func ApplyFilters(records []models.NormalizedRecord, f models.Filters) []models.NormalizedRecord {
	var city string
	if f.City != nil {
		city = strings.ToLower(*f.City)
	}

	out := make([]models.NormalizedRecord, 0, len(records))
	for _, r := range records {
		if f.MinPricePerM2 != nil && (r.PricePerM2 == nil || *r.PricePerM2 < *f.MinPricePerM2) {
			continue
		}
		if f.MaxPricePerM2 != nil && (r.PricePerM2 == nil || *r.PricePerM2 > *f.MaxPricePerM2) {
			continue
		}
		if f.City != nil && (r.Location == nil || !strings.Contains(strings.ToLower(*r.Location), city)) {
			continue
		}
		if f.MinSurface != nil && (r.SurfaceM2 == nil || *r.SurfaceM2 < *f.MinSurface) {
			continue
		}
		if f.Rooms != nil && (r.Rooms == nil || *r.Rooms != *f.Rooms) {
			continue
		}
		out = append(out, r)
	}

	if f.Limit != nil && *f.Limit >= 0 && *f.Limit < len(out) {
		out = out[:*f.Limit]
	}
	return out
}

// Summarize computes count, median price per m², histograms and the monthly
// time series.
func Summarize(records []models.NormalizedRecord) models.Summary {
	var prices, surfaces []float64
	for _, r := range records {
		if r.PricePerM2 != nil {
			prices = append(prices, *r.PricePerM2)
		}
		if r.SurfaceM2 != nil {
			surfaces = append(surfaces, *r.SurfaceM2)
		}
	}

	return models.Summary{
		Count:            len(records),
		MedianPricePerM2: Median(prices),
		PriceBins:        Histogram(prices, PriceBinWidth),
		SurfaceBins:      Histogram(surfaces, SurfaceBinWidth),
		TimeSeries:       TimeSeries(records),
	}
}

// Median returns the middle value, or the mean of the two middle values for an
// even count. It returns nil for no values.
func Median(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	m := sorted[mid]
	if len(sorted)%2 == 0 {
		m = (sorted[mid-1] + sorted[mid]) / 2
	}
	return &m
}

// maxBucket bounds bucket keys to the range where float64 holds integers
// exactly.
const maxBucket = 1 << 53

// Histogram counts values into sparse fixed-width buckets keyed by
// floor(v/width)*width, sorted ascending. Values whose bucket falls outside
// ±2^53 are skipped.
func Histogram(values []float64, width int) []models.Bin {
	counts := make(map[int]int)
	for _, v := range values {
		bucket := math.Floor(v/float64(width)) * float64(width)
		if math.IsNaN(bucket) || math.Abs(bucket) > maxBucket {
			continue
		}
		counts[int(bucket)]++
	}

	bins := make([]models.Bin, 0, len(counts))
	for bucket, n := range counts {
		bins = append(bins, models.Bin{Bucket: bucket, Count: n})
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].Bucket < bins[j].Bucket })
	return bins
}

// TimeSeries groups records by the year-month of posted_at. Records without a
// valid date are skipped.
func TimeSeries(records []models.NormalizedRecord) []models.PeriodCount {
	counts := make(map[string]int)
	for _, r := range records {
		if p, ok := Period(r.PostedAt); ok {
			counts[p]++
		}
	}

	series := make([]models.PeriodCount, 0, len(counts))
	for p, n := range counts {
		series = append(series, models.PeriodCount{Period: p, Count: n})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Period < series[j].Period })
	return series
}

// Print renders a summary as a terminal report.
func (a *Aggregator) Print(w io.Writer, s models.Summary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 LISTING SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Listings            : \033[1m%s\033[0m\n", humanize.Comma(int64(s.Count)))
	if s.MedianPricePerM2 != nil {
		fmt.Fprintf(w, "  Median price per m² : \033[1;32m%s €\033[0m\n", humanize.CommafWithDigits(*s.MedianPricePerM2, 2))
	} else {
		fmt.Fprintf(w, "  Median price per m² : n/a\n")
	}
	fmt.Fprintln(w)

	printBins(w, "Price per m² (€)", s.PriceBins, PriceBinWidth, thin)
	printBins(w, "Surface (m²)", s.SurfaceBins, SurfaceBinWidth, thin)

	fmt.Fprintf(w, "\033[1;33m  Listings per month\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(s.TimeSeries) == 0 {
		fmt.Fprintf(w, "  No dated listings\n")
	}
	for _, p := range s.TimeSeries {
		fmt.Fprintf(w, "  %-10s %s (%d)\n", p.Period, strings.Repeat("█", p.Count), p.Count)
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func printBins(w io.Writer, title string, bins []models.Bin, width int, thin string) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(bins) == 0 {
		fmt.Fprintf(w, "  No data\n\n")
		return
	}
	for _, b := range bins {
		label := fmt.Sprintf("%s–%s", humanize.Comma(int64(b.Bucket)), humanize.Comma(int64(b.Bucket+width)))
		fmt.Fprintf(w, "  %-20s %s (%d)\n", label, strings.Repeat("█", b.Count), b.Count)
	}
	fmt.Fprintln(w)
}
