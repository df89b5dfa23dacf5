package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeAttempts  = 3
	writeBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Repository = (*SQLiteStore)(nil)

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets the history endpoint read while requests are being recorded.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL DEFAULT '',
		query TEXT NOT NULL,
		intent TEXT NOT NULL,
		confidence REAL NOT NULL,
		plan_json TEXT NOT NULL,
		sources_json TEXT NOT NULL,
		response TEXT NOT NULL,
		knowledge_similarity REAL NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at);
	CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, created_at);
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

// RecordExchange inserts ex, retrying on SQLite lock contention.
func (s *SQLiteStore) RecordExchange(ctx context.Context, ex domain.Exchange) error {
	planJSON, err := json.Marshal(ex.Plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	sources := ex.Sources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO exchanges (
		id, request_id, user_id, session_id, query, intent, confidence,
		plan_json, sources_json, response, knowledge_similarity, latency_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err = shared.RetrySQLite(ctx, writeAttempts, writeBaseDelay, "record_exchange", func() error {
		_, err := s.db.ExecContext(ctx, query,
			ex.ID, ex.RequestID, ex.UserID, ex.SessionID, ex.Query, ex.Intent.String(), ex.Confidence,
			string(planJSON), string(sourcesJSON), ex.Response, ex.KnowledgeSimilarity,
			ex.Latency.Milliseconds(), ex.CreatedAt.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// ListExchanges returns matching exchanges, newest first.
func (s *SQLiteStore) ListExchanges(ctx context.Context, filter ExchangeFilter) ([]domain.Exchange, error) {
	query := `
		SELECT id, request_id, user_id, session_id, query, intent, confidence,
		       plan_json, sources_json, response, knowledge_similarity, latency_ms, created_at
		FROM exchanges
		WHERE (? = '' OR user_id = ?) AND (? = '' OR session_id = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query,
		filter.UserID, filter.UserID, filter.SessionID, filter.SessionID, filter.limit())
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close exchange rows", "error", closeErr)
		}
	}()

	exchanges := []domain.Exchange{}
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return exchanges, nil
}

func scanExchange(rows *sql.Rows) (domain.Exchange, error) {
	var (
		ex                    domain.Exchange
		intent                string
		planJSON, sourcesJSON string
		latencyMs, createdAt  int64
	)
	if err := rows.Scan(
		&ex.ID, &ex.RequestID, &ex.UserID, &ex.SessionID, &ex.Query, &intent, &ex.Confidence,
		&planJSON, &sourcesJSON, &ex.Response, &ex.KnowledgeSimilarity, &latencyMs, &createdAt,
	); err != nil {
		return domain.Exchange{}, fmt.Errorf("scan exchange row: %w", err)
	}

	if err := ex.Intent.UnmarshalText([]byte(intent)); err != nil {
		return domain.Exchange{}, fmt.Errorf("exchange %s: %w", ex.ID, err)
	}
	if err := json.Unmarshal([]byte(planJSON), &ex.Plan); err != nil {
		return domain.Exchange{}, fmt.Errorf("decode plan of exchange %s: %w", ex.ID, err)
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &ex.Sources); err != nil {
		return domain.Exchange{}, fmt.Errorf("decode sources of exchange %s: %w", ex.ID, err)
	}
	ex.Latency = time.Duration(latencyMs) * time.Millisecond
	ex.CreatedAt = time.UnixMilli(createdAt).UTC()
	return ex, nil
}

// CleanupExpired removes exchanges older than retention.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).UnixMilli()
	var deleted int64
	err := shared.RetrySQLite(ctx, writeAttempts, writeBaseDelay, "cleanup_exchanges", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM exchanges WHERE created_at < ?`, threshold)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup expired exchanges: %w", err)
	}
	return deleted, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
