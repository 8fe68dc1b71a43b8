// Package store persists the watchlist, the runtime thresholds and the bot
// state across restarts.
package store

import (
	"errors"

	"github.com/rs/zerolog"

	"MexcPulse/internal/model"
	"MexcPulse/internal/settings"
	"MexcPulse/internal/watchlist"
)

// ErrNotFound is returned when nothing was saved yet.
var ErrNotFound = errors.New("store: not found")

// Store is implemented by the JSON file store and the SQLite store.
type Store interface {
	LoadWatchlist() ([]string, error)
	SaveWatchlist(symbols []string) error
	LoadSettings() (map[string]float64, error)
	SaveSettings(values map[string]float64) error
	LoadState() (model.BotState, error)
	SaveState(state model.BotState) error
	Close() error
}

// LoadThresholds reads the persisted thresholds. Missing, unreadable or
// invalid settings are replaced by the defaults, which are written back.
func LoadThresholds(s Store, log zerolog.Logger) settings.Thresholds {
	values, err := s.LoadSettings()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Msg("settings unreadable, regenerating defaults")
		}
		return saveDefaultThresholds(s, log)
	}
	th, ignored, err := settings.FromMap(values)
	if len(ignored) > 0 {
		log.Warn().Strs("keys", ignored).Msg("ignoring unknown settings keys")
	}
	if err != nil {
		log.Warn().Err(err).Msg("settings invalid, regenerating defaults")
		return saveDefaultThresholds(s, log)
	}
	return th
}

func saveDefaultThresholds(s Store, log zerolog.Logger) settings.Thresholds {
	th := settings.Defaults()
	if err := s.SaveSettings(th.ToMap()); err != nil {
		log.Error().Err(err).Msg("write default settings failed")
	}
	return th
}

// LoadSymbols reads the persisted watchlist, seeding it with the default
// symbols on first run or when it cannot be read.
func LoadSymbols(s Store, log zerolog.Logger) []string {
	symbols, err := s.LoadWatchlist()
	if err == nil {
		return symbols
	}
	if !errors.Is(err, ErrNotFound) {
		log.Warn().Err(err).Msg("watchlist unreadable, regenerating defaults")
	}
	symbols = append([]string(nil), watchlist.DefaultSymbols...)
	if err := s.SaveWatchlist(symbols); err != nil {
		log.Error().Err(err).Msg("write default watchlist failed")
	}
	return symbols
}

// LoadBotState reads the bot state, starting from zero when there is none.
func LoadBotState(s Store, log zerolog.Logger) model.BotState {
	st, err := s.LoadState()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Msg("bot state unreadable, starting fresh")
		}
		return model.BotState{}
	}
	return st
}
