package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"MexcPulse/internal/model"
	"MexcPulse/internal/settings"
)

func testThresholds() settings.Thresholds {
	th := settings.Defaults()
	th.FetchDelay = 0
	return th
}

func TestEvaluate_ActiveSymbol(t *testing.T) {
	m := NewMockFetcher()
	m.Set("BTC", model.Candle{Open: 100, High: 100.6, Low: 100, Close: 100, Volume: 5000}, 0.2, 42)
	c := NewCollector(m, nil, zerolog.Nop())

	snap, err := c.Evaluate(context.Background(), "BTC", testThresholds())
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !snap.Active {
		t.Errorf("expected active snapshot, got %+v", snap)
	}
	if snap.Trades != 42 || snap.Volume != 5000 || snap.Symbol != "BTC" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestEvaluate_CandleFailure(t *testing.T) {
	m := NewMockFetcher()
	c := NewCollector(m, nil, zerolog.Nop())
	if _, err := c.Evaluate(context.Background(), "ETH", testThresholds()); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("Evaluate() error = %v, want ErrNotAvailable", err)
	}
}

func TestEvaluate_SpreadFailureDegradesToZero(t *testing.T) {
	m := NewMockFetcher()
	m.Set("SOL", model.Candle{Open: 10, High: 10.1, Low: 10, Close: 10, Volume: 9000}, 0.5, 3)
	m.FailSpread("SOL")
	c := NewCollector(m, nil, zerolog.Nop())

	snap, err := c.Evaluate(context.Background(), "SOL", testThresholds())
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if snap.Spread != 0 || snap.Active {
		t.Errorf("expected spread 0 and inactive, got %+v", snap)
	}
}

func TestEvaluate_HonorsFetchDelay(t *testing.T) {
	m := NewMockFetcher()
	m.Set("BTC", model.Candle{Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}, 0, 0)
	c := NewCollector(m, nil, zerolog.Nop())
	th := settings.Defaults()
	th.FetchDelay = 15 * time.Millisecond

	start := time.Now()
	if _, err := c.Evaluate(context.Background(), "BTC", th); err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Evaluate() took %v, want >= 30ms for two inter-call delays", elapsed)
	}
}
