// Package storage is the on-device record store: one SQLite file holding
// the costs collection and a small settings table. The database is opened
// and migrated lazily on first use; every operation shares the one open.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"costbook/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound reports an id with no stored cost behind it.
var ErrNotFound = errors.New("cost not found")

const (
	colsFull = "id, sum, currency, category, description, created_at, year, month, day, insertion_day"
	colsBare = "id, sum, currency, category, description, created_at"
)

type Store struct {
	path string

	openOnce sync.Once
	openErr  error
	db       *sql.DB
	version  uint
	hasParts bool
}

// New prepares a store for the given database file without touching disk.
// The file is created, opened and migrated on the first operation.
func New(path string) *Store {
	return &Store{path: path}
}

// Open makes the database ready, running pending schema migrations. Every
// operation calls it implicitly; concurrent callers share a single attempt
// and a failed open stays failed until the process restarts.
func (s *Store) Open(ctx context.Context) error {
	s.openOnce.Do(func() { s.openErr = s.open(ctx) })
	return s.openErr
}

func (s *Store) open(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(s.path)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	s.db = db
	s.version = version
	s.hasParts = true
	if version != targetSchemaVersion {
		// A newer build owns this file. Use its schema as-is and probe for
		// the columns our queries want; without them every read degrades
		// to a timestamp scan.
		s.hasParts = s.probeDateParts(ctx)
		slog.WarnContext(ctx, "Database schema is newer than this build, using it as-is",
			"path", s.path,
			"schema_version", version,
			"supported_version", targetSchemaVersion,
			"date_parts", s.hasParts)
		return nil
	}

	if err := s.repairDateParts(ctx); err != nil {
		slog.WarnContext(ctx, "Date part repair failed", "error", err)
	}
	return nil
}

// Close releases the database. The store cannot be reopened afterwards.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable, opening it if needed.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.Open(ctx); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// SchemaVersion returns the migration version the database file carries.
func (s *Store) SchemaVersion(ctx context.Context) (uint, error) {
	if err := s.Open(ctx); err != nil {
		return 0, err
	}
	return s.version, nil
}

func (s *Store) probeDateParts(ctx context.Context) bool {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM pragma_table_info('costs')
		 WHERE name IN ('year', 'month', 'day', 'insertion_day')`).Scan(&n)
	return err == nil && n == 4
}

// repairDateParts re-derives the denormalized columns for rows the SQL
// backfill could not handle because their created_at does not parse. Such
// rows get the best available timestamp: now.
func (s *Store) repairDateParts(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at FROM costs WHERE year = 0 OR month = 0 OR day = 0`)
	if err != nil {
		return fmt.Errorf("find unrepaired costs: %w", err)
	}
	defer rows.Close()

	type repair struct {
		id        int64
		createdAt time.Time
	}
	var pending []repair
	for rows.Next() {
		var id int64
		var createdAt string
		if err := rows.Scan(&id, &createdAt); err != nil {
			return fmt.Errorf("scan unrepaired cost: %w", err)
		}
		t, ok := core.ParseDate(createdAt)
		if !ok {
			t = time.Now().UTC()
		}
		pending = append(pending, repair{id: id, createdAt: t})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate unrepaired costs: %w", err)
	}

	for _, p := range pending {
		year, month, day := core.DateParts(p.createdAt)
		_, err := s.db.ExecContext(ctx,
			`UPDATE costs
			 SET created_at = ?, year = ?, month = ?, day = ?,
			     insertion_day = CASE WHEN insertion_day = 0 THEN ? ELSE insertion_day END
			 WHERE id = ?`,
			p.createdAt.Format(time.RFC3339), year, month, day, day, p.id)
		if err != nil {
			return fmt.Errorf("repair cost %d: %w", p.id, err)
		}
	}
	if len(pending) > 0 {
		slog.InfoContext(ctx, "Backfilled date parts on legacy costs", "count", len(pending))
	}
	return nil
}

// Add validates and stores a draft, returning the stored record with its
// assigned id. An invalid draft is rejected before the database is even
// opened.
func (s *Store) Add(ctx context.Context, d core.Draft) (core.Record, error) {
	rec, err := core.NewRecord(d, time.Now())
	if err != nil {
		return core.Record{}, err
	}
	if err := s.Open(ctx); err != nil {
		return core.Record{}, err
	}

	var res sql.Result
	if s.hasParts {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO costs (sum, currency, category, description, created_at, year, month, day, insertion_day)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Sum, string(rec.Currency), rec.Category, rec.Description,
			rec.CreatedAt.Format(time.RFC3339), rec.Year, rec.Month, rec.Day, rec.InsertionDay)
	} else {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO costs (sum, currency, category, description, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.Sum, string(rec.Currency), rec.Category, rec.Description,
			rec.CreatedAt.Format(time.RFC3339))
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("insert cost: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Record{}, fmt.Errorf("read inserted cost id: %w", err)
	}
	rec.ID = id

	slog.InfoContext(ctx, "Cost saved",
		"id", rec.ID,
		"sum", rec.Sum,
		"currency", rec.Currency,
		"category", rec.Category,
		"year", rec.Year,
		"month", rec.Month)
	return rec, nil
}

// Get returns the stored record with the given id.
func (s *Store) Get(ctx context.Context, id int64) (core.Record, error) {
	if err := s.Open(ctx); err != nil {
		return core.Record{}, err
	}
	return s.get(ctx, id)
}

func (s *Store) get(ctx context.Context, id int64) (core.Record, error) {
	if s.hasParts {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+colsFull+` FROM costs WHERE id = ?`, id)
		rec, err := scanRecord(row)
		if errors.Is(err, sql.ErrNoRows) {
			return core.Record{}, fmt.Errorf("cost %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return core.Record{}, fmt.Errorf("get cost %d: %w", id, err)
		}
		return rec, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+colsBare+` FROM costs WHERE id = ?`, id)
	rec, err := scanBareRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, fmt.Errorf("cost %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("get cost %d: %w", id, err)
	}
	return rec, nil
}

// Update loads a record, applies the patch and writes the result back.
// Fields the patch leaves nil keep their stored values; an unparseable
// patch date keeps the stored timestamp.
func (s *Store) Update(ctx context.Context, id int64, p core.Patch) (core.Record, error) {
	if err := s.Open(ctx); err != nil {
		return core.Record{}, err
	}
	rec, err := s.get(ctx, id)
	if err != nil {
		return core.Record{}, err
	}
	updated, err := p.Apply(rec)
	if err != nil {
		return core.Record{}, err
	}

	if s.hasParts {
		_, err = s.db.ExecContext(ctx,
			`UPDATE costs
			 SET sum = ?, currency = ?, category = ?, description = ?, created_at = ?, year = ?, month = ?, day = ?
			 WHERE id = ?`,
			updated.Sum, string(updated.Currency), updated.Category, updated.Description,
			updated.CreatedAt.Format(time.RFC3339), updated.Year, updated.Month, updated.Day, id)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE costs
			 SET sum = ?, currency = ?, category = ?, description = ?, created_at = ?
			 WHERE id = ?`,
			updated.Sum, string(updated.Currency), updated.Category, updated.Description,
			updated.CreatedAt.Format(time.RFC3339), id)
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("update cost %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Cost updated",
		"id", id,
		"sum", updated.Sum,
		"currency", updated.Currency,
		"category", updated.Category)
	return updated, nil
}

// Delete removes a record. Deleting an id that was never stored, or was
// already deleted, is not an error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.Open(ctx); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM costs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete cost %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		slog.InfoContext(ctx, "Cost deleted", "id", id)
	}
	return nil
}

// ListByPeriod returns the records of one calendar month ordered by id.
// Callers historically passed (month, year); a month can never exceed 12
// and no year fits in 1..12, so a swapped pair is recognized and fixed.
func (s *Store) ListByPeriod(ctx context.Context, year, month int) ([]core.Record, error) {
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	if year >= 1 && year <= 12 && month > 31 {
		year, month = month, year
	}
	if s.hasParts {
		return s.listIndexed(ctx, year, month)
	}
	return s.listScan(ctx, year, month)
}

func (s *Store) listIndexed(ctx context.Context, year, month int) ([]core.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+colsFull+` FROM costs WHERE year = ? AND month = ? ORDER BY id`, year, month)
	if err != nil {
		return nil, fmt.Errorf("list costs for %d-%02d: %w", year, month, err)
	}
	defer rows.Close()

	var recs []core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cost row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate costs: %w", err)
	}
	return recs, nil
}

// listScan is the fallback for schemas without the date part columns: read
// everything and filter on the parsed timestamp.
func (s *Store) listScan(ctx context.Context, year, month int) ([]core.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+colsBare+` FROM costs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("scan costs: %w", err)
	}
	defer rows.Close()

	var recs []core.Record
	for rows.Next() {
		rec, err := scanBareRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cost row: %w", err)
		}
		if rec.CreatedAt.IsZero() {
			slog.WarnContext(ctx, "Skipping cost with unreadable timestamp", "id", rec.ID)
			continue
		}
		if rec.Year == year && rec.Month == month {
			recs = append(recs, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate costs: %w", err)
	}
	return recs, nil
}

// Clear deletes every stored record. Settings survive.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.Open(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM costs`); err != nil {
		return fmt.Errorf("clear costs: %w", err)
	}
	slog.InfoContext(ctx, "All costs cleared")
	return nil
}

// Setting reads one settings value; a key that was never written reads as
// the empty string.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	if err := s.Open(ctx); err != nil {
		return "", err
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, nil
}

// PutSetting stores one settings value, replacing any previous one.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	if err := s.Open(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	slog.InfoContext(ctx, "Setting saved", "key", key)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (core.Record, error) {
	var rec core.Record
	var currency, createdAt string
	err := row.Scan(&rec.ID, &rec.Sum, &currency, &rec.Category, &rec.Description,
		&createdAt, &rec.Year, &rec.Month, &rec.Day, &rec.InsertionDay)
	if err != nil {
		return core.Record{}, err
	}
	rec.Currency = core.Currency(currency)
	if t, ok := core.ParseDate(createdAt); ok {
		rec.CreatedAt = t
	}
	return rec, nil
}

// scanBareRecord reads a row from a schema without date part columns and
// derives them from the timestamp instead.
func scanBareRecord(row rowScanner) (core.Record, error) {
	var rec core.Record
	var currency, createdAt string
	err := row.Scan(&rec.ID, &rec.Sum, &currency, &rec.Category, &rec.Description, &createdAt)
	if err != nil {
		return core.Record{}, err
	}
	rec.Currency = core.Currency(currency)
	if t, ok := core.ParseDate(createdAt); ok {
		rec.CreatedAt = t
		rec.Year, rec.Month, rec.Day = core.DateParts(t)
		rec.InsertionDay = rec.Day
	}
	return rec, nil
}
