package scraper

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks returns the detail-page URLs found on an index page, resolved
// against baseURL, deduplicated and in document order.
func ExtractLinks(html, baseURL string, rules SiteRules) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &ParseError{URL: baseURL, Err: fmt.Errorf("base url: %w", err)}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{URL: baseURL, Err: err}
	}

	seen := make(map[string]struct{})
	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		abs, err := base.Parse(href)
		if err != nil || (abs.Scheme != "http" && abs.Scheme != "https") {
			return
		}
		abs.Fragment = ""
		u := abs.String()
		if !rules.DetailLink.MatchString(u) {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		links = append(links, u)
	})
	return links, nil
}

// PageURL rewrites the trailing page-number segment of startURL to page. It
// reports false when startURL has no such segment and cannot be paginated.
func PageURL(startURL string, page int, rules SiteRules) (string, bool) {
	u, err := url.Parse(startURL)
	if err != nil {
		return "", false
	}
	m := rules.PageSegment.FindStringSubmatchIndex(u.Path)
	if m == nil {
		return "", false
	}
	// m[0] is the slash, m[4]:m[5] the optional trailing slash.
	u.Path = u.Path[:m[0]] + "/" + strconv.Itoa(page) + u.Path[m[4]:m[5]]
	u.RawPath = ""
	return u.String(), true
}
