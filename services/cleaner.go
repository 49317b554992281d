package services

import (
	"errors"

	"immo-scraper/models"
	"immo-scraper/utils"
)

// CleanStats reports what the cleaner did to one batch.
type CleanStats struct {
	Input           int
	DroppedIdentity int
	Duplicates      int
	Output          int
}

// Cleaner transforms raw records into a deduplicated, normalized dataset.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean normalizes every raw record once, drops records without identity and
// collapses duplicates by identity key. Output order is first-seen order.
func (c *Cleaner) Clean(raw []models.RawRecord) ([]models.NormalizedRecord, CleanStats) {
	stats := CleanStats{Input: len(raw)}
	normalized := make([]models.NormalizedRecord, 0, len(raw))

	for i, r := range raw {
		rec, err := Normalize(r)
		if errors.Is(err, ErrIdentityMissing) {
			stats.DroppedIdentity++
			c.logger.Debug("[cleaner] Dropping record #%d without id/url", i)
			continue
		}
		normalized = append(normalized, rec)
	}

	result := Dedupe(normalized, IdentityKey)
	stats.Duplicates = len(normalized) - len(result)
	stats.Output = len(result)

	c.logger.Info("[cleaner] Cleaned %d → %d records (no identity %d, duplicates %d)",
		stats.Input, stats.Output, stats.DroppedIdentity, stats.Duplicates)
	return result, stats
}
