package scraper

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"immo-scraper/models"
	"immo-scraper/services"
)

// whitespaceRun also covers non-breaking and narrow spaces.
var whitespaceRun = regexp.MustCompile(`[\s\p{Zs}]+`)

// DetailParser turns one detail page into a raw record using SiteRules.
type DetailParser struct {
	rules  SiteRules
	cities *regexp.Regexp
}

// NewDetailParser compiles the site rules once for repeated use.
func NewDetailParser(rules SiteRules) *DetailParser {
	return &DetailParser{rules: rules, cities: rules.cityPattern()}
}

// ParseDetail extracts title, location, price, surface, rooms and publication
// date. Every field falls back to nil independently; only unparseable markup
// is an error.
func (p *DetailParser) ParseDetail(html, pageURL string) (models.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.RawRecord{}, &ParseError{URL: pageURL, Err: err}
	}

	rec := models.RawRecord{ID: pageURL, URL: pageURL}

	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		rec.Title = &title
	}

	if p.cities != nil && p.rules.BreadcrumbSelector != "" {
		breadcrumb := doc.Find(p.rules.BreadcrumbSelector).Text()
		if city := p.cities.FindString(breadcrumb); city != "" {
			rec.Location = &city
		}
	}

	text := flatten(doc.Find("body").Text())
	// The first extractor that matches decides the field, even when its
	// value then fails to parse.
	values := make(map[Field]*models.RawNumber)
	for _, fx := range p.rules.Fields {
		if _, decided := values[fx.Field]; decided {
			continue
		}
		m := fx.Pattern.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		values[fx.Field] = nil
		if v := services.ParseNumber(m[1]); v != nil {
			values[fx.Field] = models.Num(*v)
		}
	}
	rec.PriceEUR = values[FieldPrice]
	rec.SurfaceM2 = values[FieldSurface]
	rec.Rooms = values[FieldRooms]

	for _, dx := range p.rules.Dates {
		m := dx.Pattern.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if t, err := time.Parse(dx.Layout, m[1]); err == nil {
			posted := t.Format("2006-01-02")
			rec.PostedAt = &posted
			break
		}
	}

	return rec, nil
}

func flatten(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
