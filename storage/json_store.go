package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"immo-scraper/models"
)

// WriteRawStore writes the scrape output as {scraped_at, count, items}.
func WriteRawStore(path string, items []models.RawRecord, scrapedAt time.Time) error {
	if items == nil {
		items = []models.RawRecord{}
	}
	return writeJSON(path, models.RawStore{
		ScrapedAt: scrapedAt.UTC(),
		Count:     len(items),
		Items:     items,
	})
}

// ReadRawStore reads a raw store. A missing file wraps ErrMissingFile.
func ReadRawStore(path string) (models.RawStore, error) {
	var store models.RawStore
	err := readJSON(path, &store)
	return store, err
}

// WriteCleanStore writes the normalized dataset as {normalized_at, count, items}.
func WriteCleanStore(path string, items []models.NormalizedRecord, normalizedAt time.Time) error {
	if items == nil {
		items = []models.NormalizedRecord{}
	}
	return writeJSON(path, models.CleanStore{
		NormalizedAt: normalizedAt.UTC(),
		Count:        len(items),
		Items:        items,
	})
}

// ReadCleanStore reads a cleaned store. A missing file wraps ErrMissingFile.
func ReadCleanStore(path string) (models.CleanStore, error) {
	var store models.CleanStore
	err := readJSON(path, &store)
	return store, err
}

// writeJSON writes v indented to a temporary file and renames it over path so
// readers never observe a half-written store.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("json: create output dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json: encode %q: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("json: write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("json: rename %q: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("json: %w: %s", ErrMissingFile, path)
		}
		return fmt.Errorf("json: read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json: decode %q: %w", path, err)
	}
	return nil
}
