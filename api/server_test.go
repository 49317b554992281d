package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"immo-scraper/metrics"
	"immo-scraper/models"
	"immo-scraper/utils"
)

type memorySource struct {
	name    string
	records []models.NormalizedRecord
	err     error
}

func (m *memorySource) Name() string { return m.name }

func (m *memorySource) Load(context.Context) ([]models.NormalizedRecord, error) {
	return m.records, m.err
}

func record(id, city string, ppm2, surface, rooms float64, posted string) models.NormalizedRecord {
	return models.NormalizedRecord{
		ID:         id,
		URL:        "https://www.example.fr/location/x/" + id,
		Location:   models.StringPtr(city),
		SurfaceM2:  models.FloatPtr(surface),
		Rooms:      models.FloatPtr(rooms),
		PostedAt:   models.StringPtr(posted),
		PricePerM2: models.FloatPtr(ppm2),
	}
}

func dataset() []models.NormalizedRecord {
	return []models.NormalizedRecord{
		record("1001-a", "Thiais", 1800, 35, 1, "2024-02-10"),
		record("1002-b", "Orly", 2400, 48, 2, "2024-03-01"),
		record("1003-c", "Choisy-le-Roi", 2600, 52, 2, "2024-03-15"),
		record("1004-d", "Thiais", 3100, 70, 3, "2024-04-02"),
	}
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON from %s: %v\n%s", target, err, rec.Body.String())
	}
	return rec, body
}

func TestDatasetEndpoint(t *testing.T) {
	srv := NewServer(&memorySource{name: "local", records: dataset()}, utils.NewDiscardLogger(), nil)

	rec, body := get(t, srv.Handler(), "/api/dataset")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: %q", ct)
	}
	if src := body["meta"].(map[string]any)["source"]; src != "local" {
		t.Errorf("meta.source: got %v", src)
	}
	summary := body["summary"].(map[string]any)
	if summary["count"].(float64) != 4 {
		t.Errorf("count: got %v", summary["count"])
	}
	if summary["median_price_per_m2"].(float64) != 2500 {
		t.Errorf("median: got %v", summary["median_price_per_m2"])
	}
	if n := len(body["rows"].([]any)); n != 4 {
		t.Errorf("rows: got %d", n)
	}
}

func TestDatasetEndpointFilters(t *testing.T) {
	srv := NewServer(&memorySource{name: "local", records: dataset()}, utils.NewDiscardLogger(), nil)

	_, body := get(t, srv.Handler(), "/api/dataset?min_price=2000&rooms=2")
	rows := body["rows"].([]any)
	if len(rows) != 2 {
		t.Fatalf("min_price+rooms: got %d rows, want 2", len(rows))
	}
	series := body["summary"].(map[string]any)["time_series"].([]any)
	if len(series) != 1 || series[0].(map[string]any)["period"] != "2024-03" {
		t.Errorf("time series: got %v", series)
	}

	_, body = get(t, srv.Handler(), "/api/dataset?city=thi&limit=1")
	rows = body["rows"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["id"] != "1001-a" {
		t.Errorf("city+limit: got %v", rows)
	}
	if c := body["summary"].(map[string]any)["count"].(float64); c != 1 {
		t.Errorf("summary must describe the limited rows, got count %v", c)
	}

	_, body = get(t, srv.Handler(), "/api/dataset?max_price=1000")
	if rows := body["rows"].([]any); len(rows) != 0 {
		t.Errorf("max_price=1000: got %d rows", len(rows))
	}
	if m := body["summary"].(map[string]any)["median_price_per_m2"]; m != nil {
		t.Errorf("median of empty set should be null, got %v", m)
	}
}

func TestDatasetEndpointBadParams(t *testing.T) {
	srv := NewServer(&memorySource{name: "local", records: dataset()}, utils.NewDiscardLogger(), nil)

	for _, q := range []string{"min_price=cheap", "limit=-1", "limit=2.5", "rooms=NaN"} {
		rec, body := get(t, srv.Handler(), "/api/dataset?"+q)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", q, rec.Code)
		}
		if msg, _ := body["error"].(string); msg == "" {
			t.Errorf("%s: missing error message", q)
		}
	}
}

func TestDatasetEndpointLoadFailure(t *testing.T) {
	m := metrics.New()
	src := &memorySource{name: "https://cdn.example.fr/dataset.csv", err: errors.New("connection refused")}
	srv := NewServer(src, utils.NewDiscardLogger(), m)

	rec, body := get(t, srv.Handler(), "/api/dataset")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rec.Code)
	}
	if body["error"] != "connection refused" {
		t.Errorf("error: got %v", body["error"])
	}
	if _, ok := body["rows"]; ok {
		t.Error("a failed query must not return partial rows")
	}

	metricsRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(metricsRec.Body.String(), `immo_api_requests_total{code="500"} 1`) {
		t.Errorf("metrics should count the failed query:\n%s", metricsRec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	srv := NewServer(&memorySource{name: "local"}, utils.NewDiscardLogger(), nil)
	rec, body := get(t, srv.Handler(), "/health")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health: %d %v", rec.Code, body)
	}
}

func TestParseFilters(t *testing.T) {
	f, err := ParseFilters(url.Values{
		"min_price":   {"1500"},
		"max_price":   {" 3000.5 "},
		"city":        {"Orly"},
		"min_surface": {"20"},
		"rooms":       {"2"},
		"limit":       {"10"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *f.MinPricePerM2 != 1500 || *f.MaxPricePerM2 != 3000.5 || *f.City != "Orly" ||
		*f.MinSurface != 20 || *f.Rooms != 2 || *f.Limit != 10 {
		t.Errorf("filters: %+v", f)
	}

	f, err = ParseFilters(url.Values{"city": {""}, "min_price": {""}})
	if err != nil || f.City != nil || f.MinPricePerM2 != nil {
		t.Errorf("empty parameters should not apply: %+v, %v", f, err)
	}
}
