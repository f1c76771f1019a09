// Package history persists user records and the playback history log.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/hul1hu/mediadrive/internal/metrics"
)

// ListLimit caps how many entries a history listing returns.
const ListLimit = 50

// User is the minimal identity stored on every successful login.
type User struct {
	ID    string
	Name  string
	Email string
}

// Entry is one playback event. Entries are append-only; repeat plays of
// the same item produce repeat rows.
type Entry struct {
	ItemID    string    `json:"item_id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// Store wraps the PostgreSQL connection.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL and verifies the connection.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id    TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		email      TEXT NOT NULL DEFAULT '',
		last_login TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS watch_history (
		id      BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		name    TEXT NOT NULL,
		ts      TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS watch_history_user_ts_idx
		ON watch_history (user_id, ts DESC);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// UpsertUser creates or refreshes a user record and stamps last_login.
func (s *Store) UpsertUser(ctx context.Context, u User) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, name, email, last_login)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			last_login = now()`,
		u.ID, u.Name, u.Email)
	metrics.RecordDBQuery("upsert_user", time.Since(start))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// Append inserts one playback event with a server-generated timestamp.
func (s *Store) Append(ctx context.Context, userID, itemID, name string) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watch_history (user_id, item_id, name) VALUES ($1, $2, $3)`,
		userID, itemID, name)
	metrics.RecordDBQuery("append_history", time.Since(start))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// List returns the user's most recent entries, newest first, capped at
// ListLimit.
func (s *Store) List(ctx context.Context, userID string) ([]Entry, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, name, ts FROM watch_history
		 WHERE user_id = $1
		 ORDER BY ts DESC
		 LIMIT $2`,
		userID, ListLimit)
	metrics.RecordDBQuery("list_history", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ItemID, &e.Name, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
