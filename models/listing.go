package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"
)

// RawNumber holds a numeric field exactly as it was scraped or stored: either
// a typed JSON number or the original text awaiting locale-aware parsing.
type RawNumber struct {
	Value   float64
	Text    string
	IsTyped bool
}

// Num wraps an already-typed number.
func Num(v float64) *RawNumber { return &RawNumber{Value: v, IsTyped: true} }

// Text wraps a textual number such as "1.234,56".
func Text(s string) *RawNumber { return &RawNumber{Text: s} }

// UnmarshalJSON accepts a JSON number or a JSON string. Any other literal is
// kept verbatim as text so it later normalizes to null instead of failing the
// whole store.
func (n *RawNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = RawNumber{Text: s}
		return nil
	}
	// Out-of-range literals parse to ±Inf and are rejected during normalization.
	if v, err := strconv.ParseFloat(string(data), 64); err == nil || errors.Is(err, strconv.ErrRange) {
		*n = RawNumber{Value: v, IsTyped: true}
		return nil
	}
	*n = RawNumber{Text: string(data)}
	return nil
}

// MarshalJSON writes typed values as numbers and everything else as strings.
// Non-finite typed values are written as null.
func (n RawNumber) MarshalJSON() ([]byte, error) {
	if n.IsTyped && (math.IsNaN(n.Value) || math.IsInf(n.Value, 0)) {
		return []byte("null"), nil
	}
	if n.IsTyped {
		return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
	}
	return json.Marshal(n.Text)
}

// RawRecord is the scraper output prior to type coercion. It is written to
// the raw store unchanged.
type RawRecord struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Title     *string    `json:"title"`
	Location  *string    `json:"location"`
	PriceEUR  *RawNumber `json:"price_eur"`
	SurfaceM2 *RawNumber `json:"surface_m2"`
	Rooms     *RawNumber `json:"rooms"`
	PostedAt  *string    `json:"posted_at"`
}

// UnmarshalJSON decodes a raw record leniently. Text fields accept strings,
// numbers and booleans; any other value reads as absent so one malformed item
// never fails the whole store.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	type plain RawRecord
	var aux struct {
		plain
		ID       json.RawMessage `json:"id"`
		URL      json.RawMessage `json:"url"`
		Title    json.RawMessage `json:"title"`
		Location json.RawMessage `json:"location"`
		PostedAt json.RawMessage `json:"posted_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*r = RawRecord(aux.plain)
	r.ID, _ = looseText(aux.ID)
	r.URL, _ = looseText(aux.URL)
	r.Title = looseTextPtr(aux.Title)
	r.Location = looseTextPtr(aux.Location)
	r.PostedAt = looseTextPtr(aux.PostedAt)
	return nil
}

// looseText reads a JSON string, number or boolean as text.
func looseText(data json.RawMessage) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", false
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false
		}
		return s, true
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	case 'n', '{', '[':
		return "", false
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return "", false
	}
	return num.String(), true
}

func looseTextPtr(data json.RawMessage) *string {
	s, ok := looseText(data)
	if !ok {
		return nil
	}
	return &s
}

// NormalizedRecord is the canonical typed record. Numeric fields are finite
// or nil, PostedAt is an ISO-8601 UTC timestamp or nil.
type NormalizedRecord struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	Title      *string  `json:"title"`
	Location   *string  `json:"location"`
	PriceEUR   *float64 `json:"price_eur"`
	SurfaceM2  *float64 `json:"surface_m2"`
	Rooms      *float64 `json:"rooms"`
	PostedAt   *string  `json:"posted_at"`
	PricePerM2 *float64 `json:"price_per_m2"`
}

// ToRaw converts a normalized record back into raw form, with numbers typed.
func (r NormalizedRecord) ToRaw() RawRecord {
	raw := RawRecord{
		ID:       r.ID,
		URL:      r.URL,
		Title:    r.Title,
		Location: r.Location,
		PostedAt: r.PostedAt,
	}
	if r.PriceEUR != nil {
		raw.PriceEUR = Num(*r.PriceEUR)
	}
	if r.SurfaceM2 != nil {
		raw.SurfaceM2 = Num(*r.SurfaceM2)
	}
	if r.Rooms != nil {
		raw.Rooms = Num(*r.Rooms)
	}
	return raw
}

// RawStore is the on-disk envelope written by the scrape stage.
type RawStore struct {
	ScrapedAt time.Time   `json:"scraped_at"`
	Count     int         `json:"count"`
	Items     []RawRecord `json:"items"`
}

// CleanStore is the on-disk envelope written by the clean stage.
type CleanStore struct {
	NormalizedAt time.Time          `json:"normalized_at"`
	Count        int                `json:"count"`
	Items        []NormalizedRecord `json:"items"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }
