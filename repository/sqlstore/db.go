package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/nijaru/vidqa/config"
	"github.com/nijaru/vidqa/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS videos (
    id TEXT PRIMARY KEY,
    owner_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    filename TEXT NOT NULL,
    file_path TEXT,
    s3_key TEXT,
    status TEXT NOT NULL,
    transcript TEXT,
    ai_file_name TEXT,
    ai_file_uri TEXT,
    ai_mime_type TEXT,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    CHECK ((file_path IS NULL) <> (s3_key IS NULL))
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
    sender TEXT NOT NULL,
    text TEXT NOT NULL,
    timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_videos_owner ON videos(owner_id);
CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(status);
CREATE INDEX IF NOT EXISTS idx_chat_messages_video ON chat_messages(video_id, timestamp);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS videos (
    id TEXT PRIMARY KEY,
    owner_id BIGINT NOT NULL,
    title TEXT NOT NULL,
    filename TEXT NOT NULL,
    file_path TEXT,
    s3_key TEXT,
    status TEXT NOT NULL,
    transcript TEXT,
    ai_file_name TEXT,
    ai_file_uri TEXT,
    ai_mime_type TEXT,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    CHECK ((file_path IS NULL) <> (s3_key IS NULL))
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id BIGSERIAL PRIMARY KEY,
    video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
    sender TEXT NOT NULL,
    text TEXT NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_videos_owner ON videos(owner_id);
CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(status);
CREATE INDEX IF NOT EXISTS idx_chat_messages_video ON chat_messages(video_id, timestamp);
`

// Store is the record store for videos and their chat logs, backed by
// SQLite or PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// Open connects using cfg: PostgreSQL when a URL is configured, otherwise
// a SQLite file. The schema is created if missing.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	const op = "sqlstore.Open"

	driver := cfg.Driver()
	dsn := cfg.URL
	if driver == "sqlite3" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, errors.Internal(op, err, "failed to create database directory")
		}
		dsn = sqliteDSN(cfg.Path)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Internal(op, err, "failed to open database")
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Internal(op, err, "failed to connect to database")
	}

	store, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an open connection and applies the schema for its driver.
func New(ctx context.Context, db *sqlx.DB) (*Store, error) {
	schema := sqliteSchema
	if db.DriverName() != "sqlite3" {
		schema = postgresSchema
	}
	if err := execSchema(ctx, db, schema); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL", path)
}

func execSchema(ctx context.Context, db *sqlx.DB, schema string) error {
	const op = "sqlstore.execSchema"

	return WithTransaction(ctx, db, func(tx *sqlx.Tx) error {
		for _, stmt := range strings.Split(schema, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return errors.Internal(op, err, fmt.Sprintf("failed to execute schema statement: %s", stmt))
			}
		}
		return nil
	})
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Storage("sqlstore.Ping", err, "database unreachable")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// TxFn is a function that will be called with a transaction
type TxFn func(tx *sqlx.Tx) error

// WithTransaction wraps a transaction with proper rollback/commit logic
func WithTransaction(ctx context.Context, db *sqlx.DB, fn TxFn) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // re-throw panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// withLockRetry retries fn while SQLite reports the database as busy.
func withLockRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < 3; i++ {
		if err = fn(); err == nil || !isLockError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
		}
	}
	return err
}

func isLockError(err error) bool {
	return strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "busy")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
