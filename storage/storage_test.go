package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"immo-scraper/models"
	"immo-scraper/utils"
)

func sampleDataset() []models.NormalizedRecord {
	return []models.NormalizedRecord{
		{
			ID:         "a",
			URL:        "https://www.example.fr/location/thiais/1001-a",
			Title:      models.StringPtr(`Studio "cosy", centre`),
			Location:   models.StringPtr("Thiais"),
			PriceEUR:   models.FloatPtr(200000),
			SurfaceM2:  models.FloatPtr(62.5),
			Rooms:      models.FloatPtr(3),
			PostedAt:   models.StringPtr("2024-03-01T00:00:00.000Z"),
			PricePerM2: models.FloatPtr(3200),
		},
		{
			ID:  "b",
			URL: "https://www.example.fr/location/orly/1002-b",
		},
	}
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "dataset.csv")
	if err := ExportCSV(context.Background(), path, sampleDataset()); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines:\n%s", len(lines), data)
	}
	if lines[0] != "id,url,title,location,price_eur,surface_m2,rooms,posted_at,price_per_m2" {
		t.Errorf("header: got %q", lines[0])
	}
	wantRow := `a,https://www.example.fr/location/thiais/1001-a,"Studio ""cosy"", centre",Thiais,200000,62.5,3,2024-03-01T00:00:00.000Z,3200`
	if lines[1] != wantRow {
		t.Errorf("row 1:\n got %s\nwant %s", lines[1], wantRow)
	}
	if lines[2] != "b,https://www.example.fr/location/orly/1002-b,,,,,,," {
		t.Errorf("null fields should be empty, got %q", lines[2])
	}
}

func TestReadCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleDataset()); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if *got[0].Title != `Studio "cosy", centre` || *got[0].SurfaceM2 != 62.5 || *got[0].PricePerM2 != 3200 {
		t.Errorf("first record mismatch: %+v", got[0])
	}
	if got[1].Title != nil || got[1].PriceEUR != nil || got[1].PostedAt != nil {
		t.Errorf("empty cells should read back as nil: %+v", got[1])
	}
}

func TestReadCSVLenientHeaders(t *testing.T) {
	in := "\ufeffID, URL ,Price €,Surface m²,Price per m2,extra\n" +
		"x,https://e.fr/location/a/1234-x,\"1 250\",\"12,5\",100,zzz\n" +
		"\n" +
		",,,,,\n"

	got, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("blank rows should be skipped, got %d records", len(got))
	}
	r := got[0]
	if r.ID != "x" || r.URL != "https://e.fr/location/a/1234-x" {
		t.Errorf("identity: %+v", r)
	}
	if r.PriceEUR == nil || *r.PriceEUR != 1250 {
		t.Errorf("price: got %v", r.PriceEUR)
	}
	if r.SurfaceM2 == nil || *r.SurfaceM2 != 12.5 {
		t.Errorf("surface: got %v", r.SurfaceM2)
	}
	if r.PricePerM2 == nil || *r.PricePerM2 != 100 {
		t.Errorf("price_per_m2: got %v", r.PricePerM2)
	}
	if r.Rooms != nil {
		t.Errorf("absent column should read as nil, got %v", *r.Rooms)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	if _, err := Validate(filepath.Join(dir, "absent.csv")); !errors.Is(err, ErrMissingFile) {
		t.Errorf("missing file: got %v", err)
	}

	partial := filepath.Join(dir, "partial.csv")
	_ = os.WriteFile(partial, []byte("id,url,title\na,u,t\n"), 0644)
	if _, err := Validate(partial); !errors.Is(err, ErrMissingColumns) {
		t.Errorf("missing columns: got %v", err)
	}

	empty := filepath.Join(dir, "empty.csv")
	if err := ExportCSV(context.Background(), empty, nil); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := Validate(empty); !errors.Is(err, ErrNoRows) {
		t.Errorf("zero rows: got %v", err)
	}

	good := filepath.Join(dir, "good.csv")
	if err := ExportCSV(context.Background(), good, sampleDataset()); err != nil {
		t.Fatalf("export: %v", err)
	}
	n, err := Validate(good)
	if err != nil || n != 2 {
		t.Errorf("valid file: got (%d, %v), want (2, nil)", n, err)
	}
}

func TestJSONStores(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	raw := []models.RawRecord{{
		ID:       "a",
		URL:      "https://e.fr/location/a/1234-x",
		PriceEUR: models.Text("1 250 €"),
		Rooms:    models.Num(3),
	}}
	rawPath := filepath.Join(dir, "raw.json")
	if err := WriteRawStore(rawPath, raw, at); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	store, err := ReadRawStore(rawPath)
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if store.Count != 1 || !store.ScrapedAt.Equal(at) {
		t.Errorf("raw store header: %+v", store)
	}
	if p := store.Items[0].PriceEUR; p == nil || p.IsTyped || p.Text != "1 250 €" {
		t.Errorf("textual price should survive as text: %+v", p)
	}

	cleanPath := filepath.Join(dir, "clean.json")
	if err := WriteCleanStore(cleanPath, nil, at); err != nil {
		t.Fatalf("write clean: %v", err)
	}
	clean, err := ReadCleanStore(cleanPath)
	if err != nil {
		t.Fatalf("read clean: %v", err)
	}
	if clean.Count != 0 || clean.Items == nil {
		t.Errorf("empty clean store should have an empty items array: %+v", clean)
	}

	if _, err := ReadRawStore(filepath.Join(dir, "absent.json")); !errors.Is(err, ErrMissingFile) {
		t.Errorf("missing store: got %v", err)
	}
}

func TestFileAndRemoteSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := ExportCSV(context.Background(), path, sampleDataset()); err != nil {
		t.Fatalf("export: %v", err)
	}

	local := &CSVFileSource{Path: path}
	if local.Name() != "local" {
		t.Errorf("local name: %q", local.Name())
	}
	recs, err := local.Load(context.Background())
	if err != nil || len(recs) != 2 {
		t.Fatalf("local load: (%d, %v)", len(recs), err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dataset.csv" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	}))
	defer srv.Close()

	remote := NewRemoteCSVSource(srv.URL + "/dataset.csv")
	if remote.Name() != srv.URL+"/dataset.csv" {
		t.Errorf("remote name: %q", remote.Name())
	}
	recs, err = remote.Load(context.Background())
	if err != nil || len(recs) != 2 {
		t.Fatalf("remote load: (%d, %v)", len(recs), err)
	}

	if _, err := NewRemoteCSVSource(srv.URL + "/missing.csv").Load(context.Background()); err == nil {
		t.Error("expected an error for a 404")
	}
}

func TestSQLStoreSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLStore(ctx, DriverSQLite, ":memory:", utils.NewDiscardLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	data := sampleDataset()
	dup := data[0]
	dup.ID = "a-dup"
	data = append(data, dup)

	if err := store.Write(ctx, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2 (duplicate url ignored)", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("insertion order lost: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Rooms == nil || *got[0].Rooms != 3 || got[0].Location == nil || *got[0].Location != "Thiais" {
		t.Errorf("fields mismatch: %+v", got[0])
	}
	if got[1].Title != nil || got[1].PricePerM2 != nil {
		t.Errorf("NULL columns should read back as nil: %+v", got[1])
	}

	// A second write replaces the dataset.
	if err := store.Write(ctx, data[1:2]); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	got, _ = store.Load(ctx)
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("rewrite should replace rows, got %+v", got)
	}
	if store.Name() != "db" {
		t.Errorf("name: %q", store.Name())
	}
}

func TestSQLStoreBatches(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLStore(ctx, DriverSQLite, ":memory:", utils.NewDiscardLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	var data []models.NormalizedRecord
	for i := 0; i < 120; i++ {
		u := fmt.Sprintf("https://e.fr/location/x/%04d-annonce", i)
		data = append(data, models.NormalizedRecord{ID: u, URL: u})
	}
	if err := store.Write(ctx, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil || len(got) != 120 {
		t.Fatalf("load: (%d, %v)", len(got), err)
	}
	for i := range got {
		if got[i].URL != data[i].URL {
			t.Fatalf("row %d out of order", i)
		}
	}
}

func TestOpenSQLStoreRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenSQLStore(context.Background(), "mysql", "dsn", utils.NewDiscardLogger()); err == nil {
		t.Error("expected an error for an unsupported driver")
	}
}
