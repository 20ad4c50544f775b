package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// SQL dialects understood by SQLStore.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// SQLStoreConfig captures configuration required to initialize a SQL-backed store.
type SQLStoreConfig struct {
	Dialect string
	DSN     string
	Schema  string
	Table   string
}

// SQLStore persists documents in a single table keyed by id.
type SQLStore struct {
	db  *sql.DB
	cfg SQLStoreConfig
	now func() time.Time
}

// NewSQLStore opens the database, verifies the connection and creates the table.
func NewSQLStore(ctx context.Context, cfg SQLStoreConfig) (*SQLStore, error) {
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sql store: DSN is required")
	}

	var driver string
	switch cfg.Dialect {
	case DialectSQLite:
		driver = "sqlite"
	case DialectPostgres:
		driver = "pgx"
	default:
		return nil, fmt.Errorf("sql store: unsupported dialect %q", cfg.Dialect)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sql store: open database connection: %w", err)
	}
	if cfg.Dialect == DialectSQLite {
		// sqlite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sql store: ping database: %w", err)
	}

	store := NewSQLStoreWithDB(db, cfg)
	if err = store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStoreWithDB wraps an already opened database.
func NewSQLStoreWithDB(db *sql.DB, cfg SQLStoreConfig) *SQLStore {
	if strings.TrimSpace(cfg.Table) == "" {
		cfg.Table = "token_store"
	}
	if cfg.Dialect == DialectSQLite {
		// sqlite has no schemas in the postgres sense.
		cfg.Schema = ""
	}
	return &SQLStore{db: db, cfg: cfg, now: time.Now}
}

// Close releases the underlying database connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the table (and schema when provided).
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sql store: not initialized")
	}
	if schema := strings.TrimSpace(s.cfg.Schema); schema != "" {
		query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdentifier(schema))
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("sql store: create schema: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	updated_at BIGINT NOT NULL
)`, s.fullTableName())); err != nil {
		return fmt.Errorf("sql store: create table: %w", err)
	}
	return nil
}

// Get reads the document stored under key.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := fmt.Sprintf("SELECT content FROM %s WHERE id = %s", s.fullTableName(), s.placeholder(1))
	var content string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("sql store: read %s: %w", key, err)
	}
	return []byte(content), true, nil
}

// Set upserts the document in a single statement.
func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, content, updated_at)
VALUES (%s, %s, %s)
ON CONFLICT (id)
DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`,
		s.fullTableName(), s.placeholder(1), s.placeholder(2), s.placeholder(3))
	if _, err := s.db.ExecContext(ctx, query, key, string(value), s.now().Unix()); err != nil {
		return fmt.Errorf("sql store: upsert %s: %w", key, err)
	}
	return nil
}

// Delete removes the document; a missing key is not an error.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = %s", s.fullTableName(), s.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("sql store: delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) placeholder(n int) string {
	if s.cfg.Dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) fullTableName() string {
	if strings.TrimSpace(s.cfg.Schema) == "" {
		return quoteIdentifier(s.cfg.Table)
	}
	return quoteIdentifier(s.cfg.Schema) + "." + quoteIdentifier(s.cfg.Table)
}

func quoteIdentifier(identifier string) string {
	replaced := strings.ReplaceAll(identifier, "\"", "\"\"")
	return "\"" + replaced + "\""
}
