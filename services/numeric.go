package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericNoise matches everything that is not part of a number literal,
// including regular, non-breaking and narrow spaces used as thousands
// separators in French markup.
var numericNoise = regexp.MustCompile(`[^0-9.,-]`)

// ParseNumber parses a locale-formatted number. When both ',' and '.' appear,
// '.' is a thousands separator and ',' the decimal point; a lone ',' is the
// decimal point; anything else is parsed as is. It returns nil for empty or
// non-finite results.
//
//	"1.234,56"   -> 1234.56
//	"12,5"       -> 12.5
//	"1 250 €"    -> 1250
//	"n/a"        -> nil
func ParseNumber(raw string) *float64 {
	s := numericNoise.ReplaceAllString(raw, "")
	if s == "" {
		return nil
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// round2 rounds half away from zero to two decimals. Magnitudes too large to
// scale by 100 carry no fractional part and are returned unchanged.
func round2(f float64) float64 {
	scaled := f * 100
	if math.IsInf(scaled, 0) {
		return f
	}
	return math.Round(scaled) / 100
}
