package storage

import (
	"context"

	"immo-scraper/models"
)

// ListingWriter is the interface any sink for normalized records must satisfy.
type ListingWriter interface {
	Write(ctx context.Context, records []models.NormalizedRecord) error
	Close() error
}

var (
	_ ListingWriter = (*SQLStore)(nil)
	_ ListingWriter = (*CSVWriter)(nil)
)

// DatasetSource loads the normalized dataset served by the query API.
type DatasetSource interface {
	Load(ctx context.Context) ([]models.NormalizedRecord, error)
	// Name is reported as meta.source in query responses.
	Name() string
}
