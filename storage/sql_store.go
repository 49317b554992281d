package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"immo-scraper/models"
	"immo-scraper/utils"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const insertColumns = 10

// SQLStore persists the normalized dataset to PostgreSQL or SQLite and serves
// it back in insertion order.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQLStore opens a connection, waits for the database to answer and runs
// the schema migration.
func OpenSQLStore(ctx context.Context, driver, dsn string, logger *utils.Logger) (*SQLStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("sql: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if driver == DriverSQLite {
		// An in-memory database lives and dies with its connection.
		db.SetMaxOpenConns(1)
	}

	ping := &utils.RetryConfig{MaxAttempts: 10, BaseDelay: 500 * time.Millisecond, Logger: logger}
	if err := ping.Do(ctx, driver+" ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", driver, err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			position     INTEGER          NOT NULL,
			id           TEXT             NOT NULL,
			url          TEXT             UNIQUE NOT NULL,
			title        TEXT,
			location     TEXT,
			price_eur    DOUBLE PRECISION,
			surface_m2   DOUBLE PRECISION,
			rooms        DOUBLE PRECISION,
			posted_at    TEXT,
			price_per_m2 DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_position     ON listings(position)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_price_per_m2 ON listings(price_per_m2)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_location     ON listings(location)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Name is reported as the dataset source of query responses.
func (s *SQLStore) Name() string { return "db" }

// Write replaces the stored dataset with records in one transaction.
// Records sharing a URL keep the first occurrence.
func (s *SQLStore) Write(ctx context.Context, records []models.NormalizedRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.driver, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM listings"); err != nil {
		return fmt.Errorf("%s: clear: %w", s.driver, err)
	}

	const batchSize = 50
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		if err := s.insertBatch(ctx, tx, i, records[i:end]); err != nil {
			return fmt.Errorf("%s: insert: %w", s.driver, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.driver, err)
	}
	return nil
}

func (s *SQLStore) insertBatch(ctx context.Context, tx *sql.Tx, offset int, batch []models.NormalizedRecord) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*insertColumns)

	for idx, r := range batch {
		base := idx * insertColumns
		ph := make([]string, insertColumns)
		for c := range ph {
			ph[c] = s.placeholder(base + c + 1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs,
			offset+idx, r.ID, r.URL, arg(r.Title), arg(r.Location),
			arg(r.PriceEUR), arg(r.SurfaceM2), arg(r.Rooms), arg(r.PostedAt), arg(r.PricePerM2))
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (position, id, url, title, location, price_eur, surface_m2, rooms, posted_at, price_per_m2)
		VALUES %s
		ON CONFLICT (url) DO NOTHING
	`, strings.Join(valueStrings, ","))

	_, err := tx.ExecContext(ctx, query, valueArgs...)
	return err
}

func (s *SQLStore) placeholder(n int) string {
	if s.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Load retrieves every stored record in insertion order.
func (s *SQLStore) Load(ctx context.Context) ([]models.NormalizedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, title, location, price_eur, surface_m2, rooms, posted_at, price_per_m2
		FROM listings
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch all: %w", s.driver, err)
	}
	defer rows.Close()

	records := make([]models.NormalizedRecord, 0)
	for rows.Next() {
		var (
			r                                 models.NormalizedRecord
			title, location, postedAt         sql.NullString
			price, surface, rooms, pricePerM2 sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.URL, &title, &location, &price, &surface, &rooms, &postedAt, &pricePerM2); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.driver, err)
		}
		r.Title = nullString(title)
		r.Location = nullString(location)
		r.PostedAt = nullString(postedAt)
		r.PriceEUR = nullFloat(price)
		r.SurfaceM2 = nullFloat(surface)
		r.Rooms = nullFloat(rooms)
		r.PricePerM2 = nullFloat(pricePerM2)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// arg turns an optional field into a driver value, nil meaning NULL.
func arg[T string | float64](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
