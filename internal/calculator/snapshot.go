package calculator

import (
	"time"

	"MexcPulse/internal/model"
)

// Limits are the three activity thresholds a snapshot is classified against.
type Limits struct {
	Volume float64
	Spread float64
	NATR   float64
}

// IsActive reports whether all three thresholds are met.
func IsActive(volume, spread, natr float64, l Limits) bool {
	return volume >= l.Volume && spread >= l.Spread && natr >= l.NATR
}

// BuildSnapshot derives a Snapshot from raw fetch results. The active flag
// depends only on the derived values and the limits passed in.
func BuildSnapshot(symbol string, c model.Candle, spread float64, trades int, l Limits, at time.Time) model.Snapshot {
	natr := NATR(c)
	return model.Snapshot{
		Symbol:    symbol,
		Price:     c.Close,
		Volume:    c.Volume,
		Spread:    spread,
		NATR:      natr,
		Change:    Change(c),
		Trades:    trades,
		Active:    IsActive(c.Volume, spread, natr, l),
		FetchedAt: at,
	}
}
