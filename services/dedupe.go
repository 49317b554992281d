package services

import (
	"strings"

	"immo-scraper/models"
)

// Dedupe keeps the first item for every key, preserving input order. Later
// duplicates are dropped, never merged.
func Dedupe[T any](items []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

// IdentityKey is the url of a record, falling back to its id.
func IdentityKey(r models.NormalizedRecord) string {
	if r.URL != "" {
		return r.URL
	}
	return r.ID
}

// RawIdentityKey is IdentityKey for records that were not normalized yet.
func RawIdentityKey(r models.RawRecord) string {
	if u := strings.TrimSpace(r.URL); u != "" {
		return u
	}
	return strings.TrimSpace(r.ID)
}
