package services

import (
	"errors"
	"math"
	"strings"
	"unicode"

	"immo-scraper/models"
)

// ErrIdentityMissing is returned for records without a usable id or url.
var ErrIdentityMissing = errors.New("record has no id or url")

// Normalize coerces a raw record into its canonical typed form. It is a pure
// function: normalizing the output of Normalize again yields the same record.
// Records without an identity are rejected with ErrIdentityMissing.
func Normalize(raw models.RawRecord) (models.NormalizedRecord, error) {
	url := strings.TrimSpace(raw.URL)
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = url
	}
	if id == "" || url == "" {
		return models.NormalizedRecord{}, ErrIdentityMissing
	}

	rec := models.NormalizedRecord{
		ID:        id,
		URL:       url,
		Title:     normaliseText(raw.Title),
		Location:  normaliseText(raw.Location),
		PriceEUR:  positive(coerceNumber(raw.PriceEUR)),
		SurfaceM2: positive(coerceNumber(raw.SurfaceM2)),
		Rooms:     positive(coerceNumber(raw.Rooms)),
	}
	if raw.PostedAt != nil {
		rec.PostedAt = ParsePostedAt(*raw.PostedAt)
	}
	rec.PricePerM2 = PricePerM2(rec.PriceEUR, rec.SurfaceM2)
	return rec, nil
}

// PricePerM2 derives price/surface rounded to two decimals, or nil unless both
// are present and surface is strictly positive.
func PricePerM2(price, surface *float64) *float64 {
	if price == nil || surface == nil || *surface <= 0 {
		return nil
	}
	v := round2(*price / *surface)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func coerceNumber(n *models.RawNumber) *float64 {
	if n == nil {
		return nil
	}
	if n.IsTyped {
		if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
			return nil
		}
		v := n.Value
		return &v
	}
	return ParseNumber(n.Text)
}

// positive keeps strictly positive values; zero and negative counts, prices
// and surfaces are scraping artefacts.
func positive(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}

// normaliseText strips leading/trailing whitespace and collapses internal
// whitespace. Blank strings become nil.
func normaliseText(s *string) *string {
	if s == nil {
		return nil
	}
	fields := strings.FieldsFunc(*s, unicode.IsSpace)
	if len(fields) == 0 {
		return nil
	}
	out := strings.Join(fields, " ")
	return &out
}
