// Package snapshot persists the last refresh result so startup can render
// immediately from cache while a network refresh runs in the background.
//
// The store keeps four independent keyed entries (spaces, projects, comments,
// last-updated) as serialized JSON. There is no schema version: a missing or
// unparsable entry is simply "no cache".
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/tsops/pulseboard/internal/aggregate"
	"github.com/tsops/pulseboard/internal/clickup"
)

const (
	keySpaces      = "spaces"
	keyProjects    = "projects"
	keyComments    = "comments"
	keyLastUpdated = "last_updated"
)

// Snapshot is the persisted form of one refresh result. Comments may be empty:
// the home scope does not persist them.
type Snapshot struct {
	Spaces      []clickup.Space     `json:"spaces"`
	Projects    []aggregate.Project `json:"projects"`
	Comments    []clickup.Comment   `json:"comments,omitempty"`
	LastUpdated time.Time           `json:"last_updated"`
}

// Store manages the SQLite snapshot database.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	mu     sync.RWMutex
}

// Open opens (or creates) the snapshot database.
func Open(dbPath string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		key      TEXT PRIMARY KEY,
		value    TEXT NOT NULL,
		saved_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s := &Store{db: db, logger: logger.With().Str("component", "snapshot").Logger()}
	s.logger.Info().Str("path", dbPath).Msg("snapshot store opened")
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the store is reachable (health check).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save persists a snapshot. Callers treat persistence as best-effort: they
// log a returned error and continue, leaving any prior entries in place.
func (s *Store) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := map[string]any{
		keySpaces:      snap.Spaces,
		keyProjects:    snap.Projects,
		keyComments:    snap.Comments,
		keyLastUpdated: snap.LastUpdated.UnixMilli(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning save: %w", err)
	}
	defer tx.Rollback()

	savedAt := time.Now().UnixMilli()
	for key, v := range entries {
		value, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", key, err)
		}
		_, err = tx.Exec(
			`INSERT OR REPLACE INTO snapshots (key, value, saved_at) VALUES (?, ?, ?)`,
			key, string(value), savedAt,
		)
		if err != nil {
			return fmt.Errorf("saving %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Load restores the persisted snapshot. Returns false when there is no usable
// cache; entries that are missing or fail to parse are treated as absent
// rather than as errors.
func (s *Store) Load() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{}

	if !s.loadEntry(keyProjects, &snap.Projects) {
		return nil, false
	}
	if !s.loadEntry(keySpaces, &snap.Spaces) {
		return nil, false
	}
	s.loadEntry(keyComments, &snap.Comments)

	var lastUpdatedMillis json.Number
	if s.loadEntry(keyLastUpdated, &lastUpdatedMillis) {
		if ms, err := strconv.ParseInt(lastUpdatedMillis.String(), 10, 64); err == nil {
			snap.LastUpdated = time.UnixMilli(ms)
		}
	}
	return snap, true
}

func (s *Store) loadEntry(key string, v any) bool {
	var value string
	err := s.db.QueryRow(`SELECT value FROM snapshots WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(value), v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("unparsable snapshot entry, treating as no cache")
		return false
	}
	return true
}
