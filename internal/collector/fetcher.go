package collector

import (
	"context"
	"errors"
	"time"

	"MexcPulse/internal/model"
)

// ErrNotAvailable marks a transient fetch failure: timeout, bad status or
// malformed body. Callers skip the symbol for the current round.
var ErrNotAvailable = errors.New("market data not available")

// Fetcher defines the interface for fetching one symbol's market data.
type Fetcher interface {
	FetchCandle(ctx context.Context, symbol string) (model.Candle, error)
	FetchSpread(ctx context.Context, symbol string) (float64, error)
	// FetchTradeCount returns 0 alongside any error.
	FetchTradeCount(ctx context.Context, symbol string, window time.Duration) (int, error)
	Name() string
}
