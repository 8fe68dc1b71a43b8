package bot

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"MexcPulse/internal/model"
	"MexcPulse/internal/store"
)

// Sessions keeps the persisted bot state in step with engine runs.
type Sessions struct {
	mu    sync.Mutex
	store store.Store
	state model.BotState
	since time.Time // zero while stopped
	now   func() time.Time
	log   zerolog.Logger
}

// NewSessions starts from a previously loaded state.
func NewSessions(st store.Store, initial model.BotState, log zerolog.Logger) *Sessions {
	return &Sessions{
		store: st,
		state: initial,
		now:   time.Now,
		log:   log.With().Str("component", "sessions").Logger(),
	}
}

// Started records a new run. A mode switch counts as a new session.
func (s *Sessions) Started(mode model.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.accumulate(now)
	s.state.LastMode = mode
	s.state.SessionCount++
	s.state.LastStarted = now
	s.since = now
	return s.save()
}

// Stopped records an explicit stop, so the mode is not resumed on boot.
func (s *Sessions) Stopped() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulate(s.now())
	s.since = time.Time{}
	s.state.LastMode = ""
	return s.save()
}

// Shutdown records the uptime of a run cut short by process exit and keeps
// its mode for resumption.
func (s *Sessions) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulate(s.now())
	s.since = time.Time{}
	return s.save()
}

// Flush folds the running session's uptime into the total and saves.
func (s *Sessions) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.since.IsZero() {
		return nil
	}
	s.accumulate(s.now())
	return s.save()
}

// State returns a copy including the uptime of the running session.
func (s *Sessions) State() model.BotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if !s.since.IsZero() {
		st.TotalUptime += s.now().Sub(s.since).Seconds()
	}
	return st
}

func (s *Sessions) accumulate(now time.Time) {
	if s.since.IsZero() {
		return
	}
	s.state.TotalUptime += now.Sub(s.since).Seconds()
	s.since = now
}

func (s *Sessions) save() error {
	if s.store == nil {
		return nil
	}
	return s.store.SaveState(s.state)
}
