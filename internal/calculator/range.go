package calculator

import (
	"math"

	"MexcPulse/internal/model"
)

// NATR returns the candle's true range normalized by its close, in percent.
// A zero close yields 0.
func NATR(c model.Candle) float64 {
	if c.Close == 0 {
		return 0
	}
	return math.Abs(c.High-c.Low) / math.Abs(c.Close) * 100
}

// Change returns the open-to-close move of the candle in percent.
// A zero open yields 0.
func Change(c model.Candle) float64 {
	if c.Open == 0 {
		return 0
	}
	return (c.Close - c.Open) / c.Open * 100
}
