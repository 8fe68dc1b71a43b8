package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"MexcPulse/internal/cache"
	"MexcPulse/internal/metrics"
	"MexcPulse/internal/model"
	"MexcPulse/internal/report"
	"MexcPulse/internal/scheduler"
	"MexcPulse/internal/settings"
	"MexcPulse/internal/tracker"
	"MexcPulse/internal/watchlist"
)

var (
	ErrAlreadyRunning = errors.New("engine already running in this mode")
	ErrNotRunning     = errors.New("engine not running")
)

// Options tune the engine outside the runtime thresholds.
type Options struct {
	// GraceDelay separates the end of one run from the start of the next.
	GraceDelay time.Duration
	// ReleaseTimeout bounds message cleanup after a run stops.
	ReleaseTimeout time.Duration
	Report         report.Options
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		GraceDelay:     time.Second,
		ReleaseTimeout: 2 * time.Minute,
		Report:         report.DefaultOptions(),
	}
}

type run struct {
	mode    model.Mode
	cancel  context.CancelFunc
	done    chan struct{}
	handler runHandler
	started time.Time
}

// Engine is the control surface over one scheduler. At most one run is
// active at a time; switching modes fully stops the previous run first.
type Engine struct {
	ctl sync.Mutex // serializes Start and Stop

	mu       sync.RWMutex
	current  *run
	lastStop time.Time

	sched     *scheduler.Scheduler
	settings  *settings.Store
	watchlist *watchlist.Watchlist
	tracker   *tracker.Tracker
	sink      Sink
	cache     cache.SnapshotCache
	opts      Options
	metrics   *metrics.Recorder
	log       zerolog.Logger
}

// New wires an engine. snapshots may be nil.
func New(eval scheduler.Evaluator, st *settings.Store, wl *watchlist.Watchlist, sink Sink, snapshots cache.SnapshotCache, opts Options, rec *metrics.Recorder, log zerolog.Logger) *Engine {
	return &Engine{
		sched:     scheduler.New(eval, st, wl, rec, log),
		settings:  st,
		watchlist: wl,
		tracker:   tracker.New(sink, rec, log),
		sink:      sink,
		cache:     snapshots,
		opts:      opts,
		metrics:   rec,
		log:       log.With().Str("component", "engine").Logger(),
	}
}

// Scheduler exposes the underlying scheduler for tuning.
func (e *Engine) Scheduler() *scheduler.Scheduler {
	return e.sched
}

// Start begins a run in mode. Starting the mode already running returns
// ErrAlreadyRunning; starting another mode stops the current run first.
func (e *Engine) Start(mode model.Mode) error {
	if mode != model.ModeNotification && mode != model.ModeMonitoring {
		return fmt.Errorf("start: unknown mode %q", mode)
	}
	e.ctl.Lock()
	defer e.ctl.Unlock()

	e.mu.RLock()
	cur := e.current
	e.mu.RUnlock()
	if cur != nil {
		if cur.mode == mode {
			return ErrAlreadyRunning
		}
		e.log.Info().Str("from", string(cur.mode)).Str("to", string(mode)).Msg("switching mode")
		e.stopLocked()
	}
	e.waitGrace()

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		mode:    mode,
		cancel:  cancel,
		done:    make(chan struct{}),
		handler: e.newHandler(mode),
		started: time.Now(),
	}
	e.mu.Lock()
	e.current = r
	e.mu.Unlock()

	go func() {
		defer close(r.done)
		r.handler.begin(ctx)
		e.sched.Run(ctx, mode, r.handler)
	}()
	e.log.Info().Str("mode", string(mode)).Int("symbols", e.watchlist.Len()).Msg("engine started")
	return nil
}

// Stop ends the current run and releases its outward messages.
func (e *Engine) Stop() error {
	e.ctl.Lock()
	defer e.ctl.Unlock()
	return e.stopLocked()
}

// stopLocked must be called with ctl held.
func (e *Engine) stopLocked() error {
	e.mu.RLock()
	r := e.current
	e.mu.RUnlock()
	if r == nil {
		return ErrNotRunning
	}

	r.cancel()
	<-r.done

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.ReleaseTimeout)
	r.handler.finish(ctx)
	cancel()

	e.mu.Lock()
	e.current = nil
	e.lastStop = time.Now()
	e.mu.Unlock()
	e.log.Info().Str("mode", string(r.mode)).Dur("uptime", time.Since(r.started)).Msg("engine stopped")
	return nil
}

// waitGrace sleeps out whatever remains of the grace delay since the last stop.
func (e *Engine) waitGrace() {
	e.mu.RLock()
	last := e.lastStop
	e.mu.RUnlock()
	if last.IsZero() {
		return
	}
	if remaining := e.opts.GraceDelay - time.Since(last); remaining > 0 {
		time.Sleep(remaining)
	}
}

func (e *Engine) newHandler(mode model.Mode) runHandler {
	if mode == model.ModeMonitoring {
		return &monitoringHandler{
			sink:      e.sink,
			cache:     e.cache,
			opts:      e.opts.Report,
			watchlist: e.watchlist.Len,
			log:       e.log.With().Str("mode", string(mode)).Logger(),
			now:       time.Now,
		}
	}
	return &notificationHandler{
		tracker: e.tracker,
		sink:    e.sink,
		cache:   e.cache,
		log:     e.log.With().Str("mode", string(mode)).Logger(),
	}
}

// SetConfig applies a partial settings edit. Values are raw user strings.
// The running scheduler picks the change up at its next batch.
func (e *Engine) SetConfig(partial map[string]string) (settings.Thresholds, error) {
	th, err := e.settings.Apply(partial)
	if err != nil {
		return th, err
	}
	e.log.Info().Interface("changes", partial).Msg("thresholds updated")
	return th, nil
}

// AddSymbol adds a symbol to the watchlist. added is false for duplicates.
func (e *Engine) AddSymbol(raw string) (sym string, added bool, err error) {
	sym, added, err = e.watchlist.Add(raw)
	if err == nil && added {
		e.log.Info().Str("symbol", sym).Msg("symbol added")
	}
	return sym, added, err
}

// RemoveSymbol removes a symbol from the watchlist. A tracked symbol is
// evicted once its inactivity timeout elapses.
func (e *Engine) RemoveSymbol(raw string) (string, bool) {
	sym, removed := e.watchlist.Remove(raw)
	if removed {
		e.log.Info().Str("symbol", sym).Msg("symbol removed")
	}
	return sym, removed
}

// Status is a point-in-time view of the engine.
type Status struct {
	Running    bool                `json:"running"`
	Mode       model.Mode          `json:"mode,omitempty"`
	Since      time.Time           `json:"since,omitempty"`
	Cycles     int64               `json:"cycles"`
	Active     []string            `json:"active"`
	Watchlist  int                 `json:"watchlist"`
	Thresholds settings.Thresholds `json:"thresholds"`
}

// Status reports the current run state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	r := e.current
	e.mu.RUnlock()

	st := Status{
		Cycles:     e.sched.Cycles(),
		Watchlist:  e.watchlist.Len(),
		Thresholds: e.settings.Snapshot(),
		Active:     []string{},
	}
	if r != nil {
		st.Running = true
		st.Mode = r.mode
		st.Since = r.started
	}
	for _, rec := range e.tracker.Active() {
		st.Active = append(st.Active, rec.Symbol)
	}
	return st
}

// Mode returns the running mode, or "" when stopped.
func (e *Engine) Mode() model.Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return ""
	}
	return e.current.mode
}

// Watchlist returns the sorted watchlist.
func (e *Engine) Watchlist() []string {
	return e.watchlist.Sorted()
}

// Thresholds returns the current thresholds.
func (e *Engine) Thresholds() settings.Thresholds {
	return e.settings.Snapshot()
}
