package watchlist

import (
	"sort"
	"sync"

	"MexcPulse/internal/model"
)

// DefaultSymbols seeds a fresh installation.
var DefaultSymbols = []string{
	"BTC", "ETH", "SOL", "XRP", "DOGE", "ADA", "AVAX", "LINK",
	"DOT", "TRX", "LTC", "NEAR", "APT", "ARB", "OP", "SUI",
}

// Watchlist is the concurrency-safe set of symbols the engine evaluates.
type Watchlist struct {
	mu      sync.RWMutex
	symbols map[string]struct{}
}

// New creates a watchlist from already-normalized symbols. Invalid entries
// are dropped.
func New(symbols []string) *Watchlist {
	w := &Watchlist{symbols: make(map[string]struct{}, len(symbols))}
	for _, s := range symbols {
		if sym, err := Validate(s); err == nil {
			w.symbols[sym] = struct{}{}
		}
	}
	return w
}

// Add inserts a symbol. It reports false when the symbol was already present.
func (w *Watchlist) Add(raw string) (string, bool, error) {
	sym, err := Validate(raw)
	if err != nil {
		return "", false, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.symbols[sym]; ok {
		return sym, false, nil
	}
	w.symbols[sym] = struct{}{}
	return sym, true, nil
}

// Remove deletes a symbol and reports whether it was present.
func (w *Watchlist) Remove(raw string) (string, bool) {
	sym := model.NormalizeSymbol(raw)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.symbols[sym]; !ok {
		return sym, false
	}
	delete(w.symbols, sym)
	return sym, true
}

// Contains reports whether raw names a watched symbol.
func (w *Watchlist) Contains(raw string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.symbols[model.NormalizeSymbol(raw)]
	return ok
}

// Len returns the number of watched symbols.
func (w *Watchlist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.symbols)
}

// Symbols returns a copy of the set in unspecified order.
func (w *Watchlist) Symbols() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.symbols))
	for s := range w.symbols {
		out = append(out, s)
	}
	return out
}

// Sorted returns a copy of the set in ascending order.
func (w *Watchlist) Sorted() []string {
	out := w.Symbols()
	sort.Strings(out)
	return out
}
