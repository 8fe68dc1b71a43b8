package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"MexcPulse/internal/model"
)

// SQLiteStore persists everything in a single SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s, err := newSQLiteStore(db, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func newSQLiteStore(db *sql.DB, log zerolog.Logger) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, log: log.With().Str("component", "store").Logger()}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS watchlist (
			symbol   TEXT PRIMARY KEY,
			added_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      REAL NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bot_state (
			id            INTEGER PRIMARY KEY CHECK (id = 1),
			last_mode     TEXT,
			session_count INTEGER,
			total_uptime  REAL,
			last_started  INTEGER,
			updated_at    INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:30], err)
		}
	}
	return nil
}

func (s *SQLiteStore) LoadWatchlist() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, err := s.seeded("watchlist"); err != nil || !ok {
		if err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	rows, err := s.db.Query(`SELECT symbol FROM watchlist ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	symbols := []string{}
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// SaveWatchlist replaces the stored watchlist in one transaction.
func (s *SQLiteStore) SaveWatchlist(symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM watchlist`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear watchlist: %w", err)
	}
	for _, sym := range symbols {
		if _, err := tx.Exec(`INSERT INTO watchlist (symbol, added_at) VALUES (?, ?)`, sym, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", sym, err)
		}
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('watchlist', 'seeded')`); err != nil {
		tx.Rollback()
		return fmt.Errorf("mark watchlist: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadSettings() (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]float64)
	for rows.Next() {
		var (
			key string
			v   float64
		)
		if err := rows.Scan(&key, &v); err != nil {
			return nil, fmt.Errorf("scan settings: %w", err)
		}
		values[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	return values, nil
}

func (s *SQLiteStore) SaveSettings(values map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for k, v := range values {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`, k, v, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadState() (model.BotState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		st               model.BotState
		mode             sql.NullString
		started, updated sql.NullInt64
	)
	err := s.db.QueryRow(`SELECT last_mode, session_count, total_uptime, last_started, updated_at
		FROM bot_state WHERE id = 1`).Scan(&mode, &st.SessionCount, &st.TotalUptime, &started, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return st, ErrNotFound
	}
	if err != nil {
		return st, fmt.Errorf("query bot state: %w", err)
	}
	st.LastMode = model.Mode(mode.String)
	if started.Valid && started.Int64 > 0 {
		st.LastStarted = time.Unix(started.Int64, 0)
	}
	if updated.Valid && updated.Int64 > 0 {
		st.UpdatedAt = time.Unix(updated.Int64, 0)
	}
	return st, nil
}

func (s *SQLiteStore) SaveState(state model.BotState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var started int64
	if !state.LastStarted.IsZero() {
		started = state.LastStarted.Unix()
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO bot_state
		(id, last_mode, session_count, total_uptime, last_started, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)`,
		string(state.LastMode), state.SessionCount, state.TotalUptime, started, time.Now().Unix(),
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// seeded reports whether a collection was ever saved, so an intentionally
// empty watchlist is not confused with a fresh database.
func (s *SQLiteStore) seeded(key string) (bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query meta: %w", err)
	}
	return true, nil
}
