package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"MexcPulse/internal/metrics"
	"MexcPulse/internal/model"
	"MexcPulse/internal/settings"
)

// DefaultMaxWorkers caps fetch parallelism regardless of batch size.
const DefaultMaxWorkers = 10

// Evaluator produces one symbol's snapshot.
type Evaluator interface {
	Evaluate(ctx context.Context, symbol string, th settings.Thresholds) (model.Snapshot, error)
}

// ThresholdSource hands out a consistent copy of the thresholds.
type ThresholdSource interface {
	Snapshot() settings.Thresholds
}

// SymbolSource hands out copies of the watchlist.
type SymbolSource interface {
	Symbols() []string
	Sorted() []string
}

// Result is the outcome of one symbol evaluation.
type Result struct {
	Symbol   string
	Snapshot model.Snapshot
	Err      error
}

// Handler consumes scheduler output. Every method is called from the
// scheduler's own goroutine, one call at a time.
type Handler interface {
	// HandleResult is called per symbol in completion order.
	HandleResult(ctx context.Context, r Result, th settings.Thresholds)
	// BatchDone is called after every result of the batch was handled.
	BatchDone(ctx context.Context, batch []string, th settings.Thresholds)
	// CycleDone is called after the last batch of a full pass.
	CycleDone(ctx context.Context, th settings.Thresholds)
	// Idle is called instead of a cycle when the watchlist is empty.
	Idle(ctx context.Context, th settings.Thresholds)
}

// Scheduler walks the watchlist in batches until its context is cancelled.
type Scheduler struct {
	Evaluator   Evaluator
	Thresholds  ThresholdSource
	Watchlist   SymbolSource
	MaxWorkers  int
	EvalTimeout time.Duration
	Metrics     *metrics.Recorder
	Log         zerolog.Logger

	cycles atomic.Int64
}

// New creates a scheduler with the default worker cap.
func New(eval Evaluator, th ThresholdSource, wl SymbolSource, rec *metrics.Recorder, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Evaluator:   eval,
		Thresholds:  th,
		Watchlist:   wl,
		MaxWorkers:  DefaultMaxWorkers,
		EvalTimeout: 30 * time.Second,
		Metrics:     rec,
		Log:         log.With().Str("component", "scheduler").Logger(),
	}
}

// Cycles returns the number of full passes completed since creation.
func (s *Scheduler) Cycles() int64 {
	return s.cycles.Load()
}

// Partition splits symbols into consecutive batches of at most size.
func Partition(symbols []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	batches := make([][]string, 0, (len(symbols)+size-1)/size)
	for start := 0; start < len(symbols); start += size {
		end := min(start+size, len(symbols))
		batches = append(batches, symbols[start:end])
	}
	return batches
}

// Run loops over the watchlist for mode until ctx is cancelled. Cancellation
// is observed between batches and during pacing sleeps; a batch already
// dispatched finishes its fetches but its results are discarded.
func (s *Scheduler) Run(ctx context.Context, mode model.Mode, h Handler) {
	s.Log.Info().Str("mode", string(mode)).Msg("scheduler started")
	defer s.Log.Info().Str("mode", string(mode)).Msg("scheduler stopped")

	for ctx.Err() == nil {
		th := s.Thresholds.Snapshot()
		var symbols []string
		if mode == model.ModeMonitoring {
			symbols = s.Watchlist.Sorted()
		} else {
			symbols = s.Watchlist.Symbols()
		}

		if len(symbols) == 0 {
			h.Idle(ctx, th)
			if !sleep(ctx, pause(mode, th)) {
				return
			}
			continue
		}

		start := time.Now()
		batches := Partition(symbols, th.BatchSize)
		for i, batch := range batches {
			if i > 0 {
				th = s.Thresholds.Snapshot()
			}
			s.runBatch(ctx, batch, th, h)
			if ctx.Err() != nil {
				return
			}
			h.BatchDone(ctx, batch, th)
			if i < len(batches)-1 && !sleep(ctx, th.BatchInterval) {
				return
			}
		}
		h.CycleDone(ctx, th)
		s.cycles.Add(1)
		s.Metrics.RecordCycle(string(mode), time.Since(start))
		s.Log.Debug().Int("symbols", len(symbols)).Int("batches", len(batches)).Dur("took", time.Since(start)).Msg("cycle complete")

		if !sleep(ctx, pause(mode, th)) {
			return
		}
	}
}

// runBatch evaluates batch on a bounded pool and feeds results to h as they
// complete. Fetches run on a context detached from ctx so a stop lets them
// finish; once ctx is done, remaining results are drained unhandled.
func (s *Scheduler) runBatch(ctx context.Context, batch []string, th settings.Thresholds, h Handler) {
	maxWorkers := s.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = DefaultMaxWorkers
	}
	workers := min(len(batch), th.BatchSize, maxWorkers)
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	results := make(chan Result, workers)
	fetchCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				results <- s.evaluate(fetchCtx, sym, th)
			}
		}()
	}
	go func() {
		for _, sym := range batch {
			jobs <- sym
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if ctx.Err() != nil {
			continue
		}
		h.HandleResult(ctx, r, th)
	}
}

func (s *Scheduler) evaluate(ctx context.Context, symbol string, th settings.Thresholds) Result {
	if s.EvalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.EvalTimeout)
		defer cancel()
	}
	snap, err := s.Evaluator.Evaluate(ctx, symbol, th)
	if err != nil {
		s.Log.Debug().Str("symbol", symbol).Err(err).Msg("evaluation failed")
		return Result{Symbol: symbol, Err: err}
	}
	return Result{Symbol: symbol, Snapshot: snap}
}

func pause(mode model.Mode, th settings.Thresholds) time.Duration {
	if mode == model.ModeMonitoring {
		return th.UpdateInterval
	}
	return th.FullCycleInterval
}

// sleep waits d or until ctx is done. It reports false when cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
