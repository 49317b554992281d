package api

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"immo-scraper/models"
)

// ParseFilters reads min_price, max_price, city, min_surface, rooms and limit
// from a query string. Absent or empty parameters are not applied; malformed
// ones are an error. Prices are per m².
func ParseFilters(q url.Values) (models.Filters, error) {
	var f models.Filters
	var err error

	if f.MinPricePerM2, err = floatParam(q, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPricePerM2, err = floatParam(q, "max_price"); err != nil {
		return f, err
	}
	if f.MinSurface, err = floatParam(q, "min_surface"); err != nil {
		return f, err
	}
	if f.Rooms, err = floatParam(q, "rooms"); err != nil {
		return f, err
	}
	if city := strings.TrimSpace(q.Get("city")); city != "" {
		f.City = &city
	}

	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid limit %q: want a non-negative integer", raw)
		}
		f.Limit = &n
	}
	return f, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("invalid %s %q: want a number", name, raw)
	}
	return &v, nil
}
