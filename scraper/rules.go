package scraper

import (
	"regexp"
	"strings"
)

// Field names a numeric attribute of a listing.
type Field string

const (
	FieldPrice   Field = "price_eur"
	FieldSurface Field = "surface_m2"
	FieldRooms   Field = "rooms"
)

// FieldExtractor pulls one numeric field out of a page's flattened text. The
// first capture group of Pattern is handed to the locale-numeric parser.
type FieldExtractor struct {
	Field   Field
	Pattern *regexp.Regexp
}

// DateExtractor pulls the publication date out of the flattened text. The
// first capture group is parsed with Layout.
type DateExtractor struct {
	Pattern *regexp.Regexp
	Layout  string
}

// SiteRules describes everything that is specific to one source site. A new
// site needs new rules, not pipeline changes.
type SiteRules struct {
	// DetailLink must match the absolute URL of a detail page.
	DetailLink *regexp.Regexp
	// PageSegment matches the trailing page-number segment of an index path.
	PageSegment *regexp.Regexp
	// BreadcrumbSelector selects the navigation blocks searched for a city.
	BreadcrumbSelector string
	// Cities is the whitelist of place names recognised as a location.
	Cities []string
	// Fields are tried in order; the first match for a field wins.
	Fields []FieldExtractor
	// Dates are tried in order; the first parseable match wins.
	Dates []DateExtractor
}

// DefaultRules returns the rules for the French rental site the pipeline was
// written for.
func DefaultRules() SiteRules {
	return SiteRules{
		DetailLink:         regexp.MustCompile(`/location/(?:[^?#]*/)?\d{3,}-`),
		PageSegment:        regexp.MustCompile(`/(\d+)(/?)$`),
		BreadcrumbSelector: "nav, .breadcrumb, .ariane, .fil-ariane",
		Cities:             []string{"Choisy-le-Roi", "Orly", "Thiais"},
		Fields: []FieldExtractor{
			{Field: FieldSurface, Pattern: regexp.MustCompile(`(?i)Surface habitable\s*\(m²\)\s*([\d.,]+)`)},
			{Field: FieldRooms, Pattern: regexp.MustCompile(`(?i)Nombre de pièces\s*([0-9]+)`)},
			// Monthly rent takes precedence over a one-time price.
			{Field: FieldPrice, Pattern: regexp.MustCompile(`(?i)Loyer\s*CC\*?\s*/\s*mois\s*([\d.,\s]+)€`)},
			{Field: FieldPrice, Pattern: regexp.MustCompile(`(?i)Prix\s*([\d.,\s]+)€`)},
		},
		Dates: []DateExtractor{
			{Pattern: regexp.MustCompile(`(?i)(?:Publiée|Mise à jour) le\s*(\d{2}/\d{2}/\d{4})`), Layout: "02/01/2006"},
		},
	}
}

// cityPattern compiles the whitelist into one case-insensitive alternation.
func (r SiteRules) cityPattern() *regexp.Regexp {
	if len(r.Cities) == 0 {
		return nil
	}
	quoted := make([]string, len(r.Cities))
	for i, c := range r.Cities {
		quoted[i] = regexp.QuoteMeta(c)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
}
