package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"MexcPulse/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	watchlistFile = "watchlist.json"
	settingsFile  = "config.json"
	stateFile     = "bot_state.json"
)

// JSONStore keeps one JSON document per concern in a directory.
type JSONStore struct {
	dir string
	mu  sync.Mutex
}

type watchlistDoc struct {
	Symbols   []string  `json:"symbols"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJSONStore creates the directory if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

func (s *JSONStore) LoadWatchlist() ([]string, error) {
	var doc watchlistDoc
	if err := s.read(watchlistFile, &doc); err != nil {
		return nil, err
	}
	return doc.Symbols, nil
}

func (s *JSONStore) SaveWatchlist(symbols []string) error {
	return s.write(watchlistFile, watchlistDoc{Symbols: symbols, UpdatedAt: time.Now()})
}

func (s *JSONStore) LoadSettings() (map[string]float64, error) {
	values := make(map[string]float64)
	if err := s.read(settingsFile, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *JSONStore) SaveSettings(values map[string]float64) error {
	return s.write(settingsFile, values)
}

func (s *JSONStore) LoadState() (model.BotState, error) {
	var st model.BotState
	err := s.read(stateFile, &st)
	return st, err
}

func (s *JSONStore) SaveState(state model.BotState) error {
	state.UpdatedAt = time.Now()
	return s.write(stateFile, state)
}

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) read(name string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// write replaces the file atomically through a temp file in the same dir.
func (s *JSONStore) write(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}
