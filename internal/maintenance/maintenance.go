// Package maintenance runs periodic housekeeping on a cron schedule.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"MexcPulse/internal/engine"
	"MexcPulse/internal/metrics"
)

// Purger drops expired cache entries.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// Flusher persists accumulated state.
type Flusher interface {
	Flush() error
}

// StatusProvider reports engine state.
type StatusProvider interface {
	Status() engine.Status
}

// Scheduler manages all maintenance cron jobs.
type Scheduler struct {
	Cron    *cron.Cron
	Cache   Purger
	State   Flusher
	Status  StatusProvider
	Metrics *metrics.Recorder
	Log     zerolog.Logger
	Ctx     context.Context
}

// NewScheduler creates a scheduler with second-resolution cron specs.
func NewScheduler(ctx context.Context, cache Purger, state Flusher, status StatusProvider, rec *metrics.Recorder, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		Cache:   cache,
		State:   state,
		Status:  status,
		Metrics: rec,
		Log:     log.With().Str("component", "maintenance").Logger(),
		Ctx:     ctx,
	}
}

// RegisterAll registers the cache purge, state flush and heartbeat jobs.
// An empty spec skips that job.
func (s *Scheduler) RegisterAll(purgeCron, flushCron, heartbeatCron string) error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"cache purge", purgeCron, s.PurgeCache},
		{"state flush", flushCron, s.FlushState},
		{"heartbeat", heartbeatCron, s.Heartbeat},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.Cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("register %s task: %w", j.name, err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info().Int("jobs", len(s.Cron.Entries())).Msg("maintenance started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Log.Info().Msg("maintenance stopped")
}

func (s *Scheduler) PurgeCache() {
	if s.Cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.Ctx, 10*time.Second)
	defer cancel()
	n, err := s.Cache.Purge(ctx)
	if err != nil {
		s.Log.Warn().Err(err).Msg("cache purge failed")
		return
	}
	if n > 0 {
		s.Log.Debug().Int("purged", n).Msg("cache purged")
	}
}

func (s *Scheduler) FlushState() {
	if s.State == nil {
		return
	}
	if err := s.State.Flush(); err != nil {
		s.Log.Warn().Err(err).Msg("state flush failed")
	}
}

// Heartbeat logs a one-line summary and refreshes the active symbols gauge.
func (s *Scheduler) Heartbeat() {
	st := s.Status.Status()
	s.Metrics.SetActiveSymbols(len(st.Active))
	mode := string(st.Mode)
	if !st.Running {
		mode = "stopped"
	}
	s.Log.Info().
		Str("mode", mode).
		Int64("cycles", st.Cycles).
		Int("active", len(st.Active)).
		Int("watchlist", st.Watchlist).
		Msg("heartbeat")
}
