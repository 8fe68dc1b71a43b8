package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"MexcPulse/internal/metrics"
	"MexcPulse/internal/model"
)

// Emitter receives activity transitions and owns the outward messages
// they produce.
type Emitter interface {
	Activated(ctx context.Context, ev model.ActivatedEvent) (model.Handle, error)
	Updated(ctx context.Context, h model.Handle, ev model.UpdatedEvent) error
	Deactivated(ctx context.Context, h model.Handle, ev model.DeactivatedEvent) error
}

// Record is the tracked state of one active symbol.
type Record struct {
	Symbol     string
	Start      time.Time
	LastActive time.Time
	Handle     model.Handle
	Snapshot   model.Snapshot
}

// Tracker is the per-symbol activity state machine:
//
//	absent --active--> active --active--> active (refresh)
//	active --inactive or missing for > timeout since last_active--> absent
//
// Observe, Miss and Sweep must be called from a single goroutine. Readers
// (Active, Len) may run concurrently with them.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*Record
	emit    Emitter
	metrics *metrics.Recorder
	log     zerolog.Logger
	now     func() time.Time
}

// New creates an empty tracker emitting to emit.
func New(emit Emitter, rec *metrics.Recorder, log zerolog.Logger) *Tracker {
	return &Tracker{
		records: make(map[string]*Record),
		emit:    emit,
		metrics: rec,
		log:     log.With().Str("component", "tracker").Logger(),
		now:     time.Now,
	}
}

// Observe applies one successful evaluation.
func (t *Tracker) Observe(ctx context.Context, snap model.Snapshot, timeout time.Duration) {
	if !snap.Active {
		t.expire(ctx, snap.Symbol, timeout)
		return
	}
	now := t.now()

	t.mu.Lock()
	rec, ok := t.records[snap.Symbol]
	if ok {
		rec.LastActive = now
		rec.Snapshot = snap
		h := rec.Handle
		t.mu.Unlock()

		t.metrics.RecordEvent("updated")
		if err := t.emit.Updated(ctx, h, model.UpdatedEvent{Symbol: snap.Symbol, Snapshot: snap}); err != nil {
			t.log.Warn().Str("symbol", snap.Symbol).Err(err).Msg("emit update failed")
		}
		return
	}
	t.records[snap.Symbol] = &Record{
		Symbol:     snap.Symbol,
		Start:      now,
		LastActive: now,
		Snapshot:   snap,
	}
	n := len(t.records)
	t.mu.Unlock()

	t.metrics.RecordEvent("activated")
	t.metrics.SetActiveSymbols(n)
	t.log.Info().Str("symbol", snap.Symbol).Float64("volume", snap.Volume).Float64("natr", snap.NATR).Float64("spread", snap.Spread).Msg("symbol activated")

	h, err := t.emit.Activated(ctx, model.ActivatedEvent{Symbol: snap.Symbol, Snapshot: snap})
	if err != nil {
		t.log.Error().Str("symbol", snap.Symbol).Err(err).Msg("emit activation failed")
		return
	}
	t.mu.Lock()
	if rec, ok := t.records[snap.Symbol]; ok {
		rec.Handle = h
	}
	t.mu.Unlock()
}

// Miss records a failed evaluation. It counts as an inactive reading, so the
// symbol is evicted only once its timeout has elapsed.
func (t *Tracker) Miss(ctx context.Context, symbol string, timeout time.Duration) {
	t.expire(ctx, symbol, timeout)
}

// Sweep evicts every record whose last active reading is older than timeout.
// It covers symbols that no longer appear in any batch.
func (t *Tracker) Sweep(ctx context.Context, timeout time.Duration) {
	t.mu.RLock()
	symbols := make([]string, 0, len(t.records))
	for s := range t.records {
		symbols = append(symbols, s)
	}
	t.mu.RUnlock()
	sort.Strings(symbols)

	for _, s := range symbols {
		t.expire(ctx, s, timeout)
	}
}

func (t *Tracker) expire(ctx context.Context, symbol string, timeout time.Duration) {
	now := t.now()

	t.mu.Lock()
	rec, ok := t.records[symbol]
	if !ok || now.Sub(rec.LastActive) <= timeout {
		t.mu.Unlock()
		return
	}
	delete(t.records, symbol)
	n := len(t.records)
	t.mu.Unlock()

	ev := model.DeactivatedEvent{
		Symbol:     symbol,
		Start:      rec.Start,
		LastActive: rec.LastActive,
		End:        now,
		Duration:   rec.LastActive.Sub(rec.Start),
	}
	t.metrics.RecordEvent("deactivated")
	t.metrics.SetActiveSymbols(n)
	t.log.Info().Str("symbol", symbol).Dur("duration", ev.Duration).Msg("symbol deactivated")

	if err := t.emit.Deactivated(ctx, rec.Handle, ev); err != nil {
		t.log.Warn().Str("symbol", symbol).Err(err).Msg("emit deactivation failed")
	}
}

// Reset forgets every record without emitting and returns what was dropped,
// so the caller can release their messages.
func (t *Tracker) Reset() []Record {
	t.mu.Lock()
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, *r)
	}
	t.records = make(map[string]*Record)
	t.mu.Unlock()

	t.metrics.SetActiveSymbols(0)
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Active returns copies of the current records ordered by symbol.
func (t *Tracker) Active() []Record {
	t.mu.RLock()
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, *r)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Len returns the number of tracked symbols.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
