package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"MexcPulse/internal/calculator"
	"MexcPulse/internal/metrics"
	"MexcPulse/internal/model"
	"MexcPulse/internal/settings"
)

// TradeWindow is the trailing window trades are counted over.
const TradeWindow = 60 * time.Second

// MockFetcher returns controllable fixed data for development and testing.
// Symbols without a configured candle fail with ErrNotAvailable.
type MockFetcher struct {
	mu        sync.Mutex
	candles   map[string]model.Candle
	spreads   map[string]float64
	trades    map[string]int
	spreadErr map[string]bool
}

// NewMockFetcher creates an empty mock.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		candles:   make(map[string]model.Candle),
		spreads:   make(map[string]float64),
		trades:    make(map[string]int),
		spreadErr: make(map[string]bool),
	}
}

func (m *MockFetcher) Name() string { return "mock" }

// Set configures the data returned for symbol.
func (m *MockFetcher) Set(symbol string, c model.Candle, spread float64, trades int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[symbol] = c
	m.spreads[symbol] = spread
	m.trades[symbol] = trades
	delete(m.spreadErr, symbol)
}

// Fail makes every candle fetch for symbol fail.
func (m *MockFetcher) Fail(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.candles, symbol)
}

// FailSpread makes only the depth fetch for symbol fail.
func (m *MockFetcher) FailSpread(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spreadErr[symbol] = true
}

func (m *MockFetcher) FetchCandle(_ context.Context, symbol string) (model.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candles[symbol]
	if !ok {
		return model.Candle{}, fmt.Errorf("%w: %s: no mock data", ErrNotAvailable, symbol)
	}
	return c, nil
}

func (m *MockFetcher) FetchSpread(_ context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spreadErr[symbol] {
		return 0, fmt.Errorf("%w: %s: depth unavailable", ErrNotAvailable, symbol)
	}
	return m.spreads[symbol], nil
}

func (m *MockFetcher) FetchTradeCount(_ context.Context, symbol string, _ time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trades[symbol], nil
}

// Collector sequences the three fetches for a symbol and derives its Snapshot.
type Collector struct {
	Fetcher Fetcher
	Metrics *metrics.Recorder
	Log     zerolog.Logger
	now     func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, rec *metrics.Recorder, log zerolog.Logger) *Collector {
	return &Collector{
		Fetcher: fetcher,
		Metrics: rec,
		Log:     log.With().Str("component", "collector").Logger(),
		now:     time.Now,
	}
}

// Evaluate fetches candle, spread and trade count for symbol, pausing
// th.FetchDelay between calls. A failed candle fetch fails the whole
// evaluation; a failed spread counts as 0 and a failed trade count as 0.
func (c *Collector) Evaluate(ctx context.Context, symbol string, th settings.Thresholds) (model.Snapshot, error) {
	candle, err := c.Fetcher.FetchCandle(ctx, symbol)
	if err != nil {
		c.Metrics.RecordEvaluation(false)
		c.Log.Debug().Str("symbol", symbol).Err(err).Msg("candle unavailable")
		return model.Snapshot{}, fmt.Errorf("evaluate %s: %w", symbol, err)
	}

	if err := sleep(ctx, th.FetchDelay); err != nil {
		c.Metrics.RecordEvaluation(false)
		return model.Snapshot{}, fmt.Errorf("evaluate %s: %w", symbol, err)
	}
	spread, err := c.Fetcher.FetchSpread(ctx, symbol)
	if err != nil {
		c.Log.Debug().Str("symbol", symbol).Err(err).Msg("spread unavailable, using 0")
		spread = 0
	}

	if err := sleep(ctx, th.FetchDelay); err != nil {
		c.Metrics.RecordEvaluation(false)
		return model.Snapshot{}, fmt.Errorf("evaluate %s: %w", symbol, err)
	}
	trades, err := c.Fetcher.FetchTradeCount(ctx, symbol, TradeWindow)
	if err != nil {
		c.Log.Debug().Str("symbol", symbol).Err(err).Msg("trade count unavailable, using 0")
		trades = 0
	}

	snap := calculator.BuildSnapshot(symbol, candle, spread, trades, th.Limits(), c.now())
	c.Metrics.RecordEvaluation(true)
	return snap, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
