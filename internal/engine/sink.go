package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"MexcPulse/internal/model"
	"MexcPulse/internal/tracker"
)

// Sink receives every event the engine produces. Handles returned by a
// sink are passed back to it for later edits and deletion.
type Sink interface {
	tracker.Emitter
	Report(ctx context.Context, h model.Handle, ev model.ReportReady) (model.Handle, error)
	Release(ctx context.Context, h model.Handle) error
}

// Defaults for the secondary queue.
const (
	DefaultSecondaryQueue   = 256
	DefaultSecondaryTimeout = 15 * time.Second
)

type secondaryCall struct {
	kind   string
	symbol string
	fn     func(ctx context.Context, s Sink) error
}

// MultiSink fans events out to a primary sink, whose handles are
// authoritative, and any number of best-effort secondary sinks.
//
// Secondary sinks are fed from a bounded queue drained by one goroutine,
// so a slow or unreachable secondary never delays the primary. Events
// that do not fit in the queue are dropped with a warning.
type MultiSink struct {
	primary   Sink
	secondary []Sink
	timeout   time.Duration
	log       zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan secondaryCall
	done   chan struct{}
}

// NewMultiSink starts the secondary queue. queue and timeout fall back to
// the defaults when not positive. Close stops it.
func NewMultiSink(primary Sink, secondary []Sink, queue int, timeout time.Duration, log zerolog.Logger) *MultiSink {
	if queue <= 0 {
		queue = DefaultSecondaryQueue
	}
	if timeout <= 0 {
		timeout = DefaultSecondaryTimeout
	}
	m := &MultiSink{
		primary:   primary,
		secondary: secondary,
		timeout:   timeout,
		log:       log.With().Str("component", "multisink").Logger(),
		queue:     make(chan secondaryCall, queue),
		done:      make(chan struct{}),
	}
	go m.drain()
	return m
}

func (m *MultiSink) Activated(ctx context.Context, ev model.ActivatedEvent) (model.Handle, error) {
	h, err := m.primary.Activated(ctx, ev)
	m.enqueue("activated", ev.Symbol, func(ctx context.Context, s Sink) error {
		_, err := s.Activated(ctx, ev)
		return err
	})
	return h, err
}

func (m *MultiSink) Updated(ctx context.Context, h model.Handle, ev model.UpdatedEvent) error {
	err := m.primary.Updated(ctx, h, ev)
	m.enqueue("updated", ev.Symbol, func(ctx context.Context, s Sink) error {
		return s.Updated(ctx, 0, ev)
	})
	return err
}

func (m *MultiSink) Deactivated(ctx context.Context, h model.Handle, ev model.DeactivatedEvent) error {
	err := m.primary.Deactivated(ctx, h, ev)
	m.enqueue("deactivated", ev.Symbol, func(ctx context.Context, s Sink) error {
		return s.Deactivated(ctx, 0, ev)
	})
	return err
}

func (m *MultiSink) Report(ctx context.Context, h model.Handle, ev model.ReportReady) (model.Handle, error) {
	nh, err := m.primary.Report(ctx, h, ev)
	m.enqueue("report", "", func(ctx context.Context, s Sink) error {
		_, err := s.Report(ctx, 0, ev)
		return err
	})
	return nh, err
}

func (m *MultiSink) Release(ctx context.Context, h model.Handle) error {
	return m.primary.Release(ctx, h)
}

// Close stops accepting secondary events and waits until the queued ones
// have been delivered or timed out.
func (m *MultiSink) Close() error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()
	<-m.done
	return nil
}

func (m *MultiSink) enqueue(kind, symbol string, fn func(ctx context.Context, s Sink) error) {
	if len(m.secondary) == 0 {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- secondaryCall{kind: kind, symbol: symbol, fn: fn}:
	default:
		m.log.Warn().Str("event", kind).Str("symbol", symbol).Msg("secondary queue full, event dropped")
	}
}

func (m *MultiSink) drain() {
	defer close(m.done)
	for c := range m.queue {
		for _, s := range m.secondary {
			ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
			if err := c.fn(ctx, s); err != nil {
				m.log.Warn().Err(err).Str("event", c.kind).Str("symbol", c.symbol).Msg("secondary sink failed")
			}
			cancel()
		}
	}
}
