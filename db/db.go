package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vpnda/statement-relay/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// InMemoryDSN opens a private in-memory database that disappears with the
// process. The coordinator only ever uses this so cached financial data never
// touches the disk.
const InMemoryDSN = "file:relay-cache?mode=memory&cache=shared"

// DB represents the database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		// Ensure directory exists
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a shared in-memory database lives as long as one connection does
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// NewInMemory opens the session scoped cache database.
func NewInMemory() (*DB, error) {
	return New(InMemoryDSN)
}

// Initialize creates the necessary tables if they don't exist
func (db *DB) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		cache_key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)
	`

	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create cache_entries table: %w", err)
	}

	return nil
}

// GetEntry returns the entry stored under key, nil when there is none
func (db *DB) GetEntry(key string) (*models.CacheEntry, error) {
	query := `
	SELECT data, created_at
	FROM cache_entries
	WHERE cache_key = ?
	LIMIT 1
	`

	var (
		data      []byte
		createdAt int64
	)
	err := db.QueryRow(query, key).Scan(&data, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	return &models.CacheEntry{
		Data:      data,
		Timestamp: time.UnixMilli(createdAt),
	}, nil
}

// PutEntry stores entry under key, replacing whatever was there
func (db *DB) PutEntry(key string, entry *models.CacheEntry) error {
	query := `
	INSERT INTO cache_entries (cache_key, data, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT(cache_key)
	DO UPDATE SET
		data = excluded.data,
		created_at = excluded.created_at
	`

	_, err := db.Exec(query, key, []byte(entry.Data), entry.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}

	return nil
}

// DeleteEntry removes key. Removing a missing key is not an error.
func (db *DB) DeleteEntry(key string) error {
	_, err := db.Exec(`DELETE FROM cache_entries WHERE cache_key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// ClearEntries wipes every cached entry
func (db *DB) ClearEntries() error {
	_, err := db.Exec(`DELETE FROM cache_entries`)
	if err != nil {
		return fmt.Errorf("failed to clear cache entries: %w", err)
	}
	return nil
}

// ListKeys returns every key currently stored, expired or not
func (db *DB) ListKeys() ([]string, error) {
	rows, err := db.Query(`SELECT cache_key FROM cache_entries ORDER BY cache_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan cache key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cache keys: %w", err)
	}

	return keys, nil
}
