package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/donutsmp/farmbot/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed catalog store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	// Insertion order is carried by rowid: an upsert keeps the original
	// rowid, so overwrites never reorder the catalog.
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS farms (
		category TEXT NOT NULL,
		farm_id TEXT NOT NULL,
		name TEXT NOT NULL,
		income REAL NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (category, farm_id)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Upsert creates or overwrites a farm entry. Retries with exponential
// backoff when the database is momentarily locked.
func (s *SQLiteStore) Upsert(ctx context.Context, category, farmID, name string, income float64) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.upsertOnce(ctx, category, farmID, name, income)
		if err == nil {
			return nil
		}

		if isBusyError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("Catalog upsert hit SQLITE_BUSY, retrying",
				"category", category,
				"farm_id", farmID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}
	return fmt.Errorf("upsert farm %s/%s: %w", category, farmID, err)
}

func (s *SQLiteStore) upsertOnce(ctx context.Context, category, farmID, name string, income float64) error {
	query := `
	INSERT INTO farms (category, farm_id, name, income, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(category, farm_id) DO UPDATE SET
		name = excluded.name,
		income = excluded.income,
		updated_at = excluded.updated_at`

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, query, category, farmID, name, income, now, now)
	return err
}

// ListCategories returns the catalog grouped by category, both levels in
// insertion order. A single query keeps the snapshot consistent under a
// concurrent upsert.
func (s *SQLiteStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query := `SELECT category, farm_id, name, income FROM farms ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query farms: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close farm rows", "error", closeErr)
		}
	}()

	var categories []domain.Category
	index := make(map[string]int)

	for rows.Next() {
		var category string
		var farm domain.FarmEntry
		if err := rows.Scan(&category, &farm.ID, &farm.Name, &farm.Income); err != nil {
			return nil, fmt.Errorf("scan farm row: %w", err)
		}

		i, ok := index[category]
		if !ok {
			i = len(categories)
			index[category] = i
			categories = append(categories, domain.Category{Name: category})
		}
		categories[i].Farms = append(categories[i].Farms, farm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate farm rows: %w", err)
	}

	return categories, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// isBusyError reports whether err is a SQLite concurrency error worth
// retrying.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
