package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"immo-scraper/models"
)

// Validation failures of a CSV export. Each maps to its own exit status.
var (
	ErrMissingFile    = errors.New("missing file")
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoRows         = errors.New("zero rows")
)

// RemoteTimeout bounds the download of a remote CSV dataset.
const RemoteTimeout = 15 * time.Second

// ReadCSV decodes a CSV export. Header names are matched leniently (case, BOM,
// spaces, "€" and "m²" spellings); unknown columns are ignored and missing
// ones read as null.
func ReadCSV(r io.Reader) ([]models.NormalizedRecord, error) {
	header, rows, err := readTable(r)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]models.NormalizedRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.NormalizedRecord{
			ID:         cell(row, "id"),
			URL:        cell(row, "url"),
			Title:      optional(cell(row, "title")),
			Location:   optional(cell(row, "location")),
			PriceEUR:   parseCell(cell(row, "price_eur")),
			SurfaceM2:  parseCell(cell(row, "surface_m2")),
			Rooms:      parseCell(cell(row, "rooms")),
			PostedAt:   optional(cell(row, "posted_at")),
			PricePerM2: parseCell(cell(row, "price_per_m2")),
		})
	}
	return records, nil
}

// Validate checks that the CSV at path has every column of Columns and at
// least one data row. It returns the row count.
func Validate(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return 0, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	header, rows, err := readTable(f)
	if err != nil {
		return 0, err
	}

	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	var missing []string
	for _, col := range Columns {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return 0, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ","))
	}

	if len(rows) == 0 {
		return 0, ErrNoRows
	}
	return len(rows), nil
}

// readTable returns the normalized header and the non-empty data rows.
func readTable(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("csv: read header: %w", err)
	}
	for i, h := range header {
		header[i] = normalizeHeader(h)
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("csv: read row: %w", err)
		}
		if blank(row) {
			continue
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

var headerReplacer = strings.NewReplacer("\ufeff", "", "€", "eur", "m²", "m2", "sqm", "m2")

func normalizeHeader(h string) string {
	h = strings.TrimSpace(headerReplacer.Replace(strings.ToLower(h)))
	return strings.Join(strings.Fields(h), "_")
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parseCell reads an exported number. Whitespace is dropped and a comma is
// accepted as decimal separator; anything else non-numeric is null.
func parseCell(s string) *float64 {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// CSVFileSource serves the dataset from a local CSV export.
type CSVFileSource struct {
	Path string
}

func (s *CSVFileSource) Name() string { return "local" }

func (s *CSVFileSource) Load(_ context.Context) ([]models.NormalizedRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("csv: %w: %s", ErrMissingFile, s.Path)
		}
		return nil, fmt.Errorf("csv: open %q: %w", s.Path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// RemoteCSVSource serves the dataset from a CSV downloaded on every load.
type RemoteCSVSource struct {
	URL    string
	Client *http.Client
}

// NewRemoteCSVSource uses a client bounded by RemoteTimeout.
func NewRemoteCSVSource(url string) *RemoteCSVSource {
	return &RemoteCSVSource{URL: url, Client: &http.Client{Timeout: RemoteTimeout}}
}

func (s *RemoteCSVSource) Name() string { return s.URL }

func (s *RemoteCSVSource) Load(ctx context.Context) ([]models.NormalizedRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("csv: build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("csv: fetch %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("csv: fetch %s: unexpected status %d", s.URL, resp.StatusCode)
	}
	return ReadCSV(resp.Body)
}
