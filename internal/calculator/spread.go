package calculator

// Spread returns the relative bid/ask gap as a percentage of the bid.
// A zero bid yields 0.
func Spread(bid, ask float64) float64 {
	if bid == 0 {
		return 0
	}
	return (ask - bid) / bid * 100
}
