package model

import "strings"

// QuoteAsset is the fixed quote currency every watched symbol trades against.
const QuoteAsset = "USDT"

// NormalizeSymbol canonicalizes user input into a base-asset symbol:
// trimmed, uppercased and stripped of the quote suffix ("btc_usdt" -> "BTC").
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, "_"+QuoteAsset)
	s = strings.TrimSuffix(s, QuoteAsset)
	return s
}

// Pair returns the exchange trading pair for a base symbol.
func Pair(symbol string) string {
	if strings.HasSuffix(symbol, QuoteAsset) {
		return symbol
	}
	return symbol + QuoteAsset
}

// DisplayPair is the human form used in messages, e.g. "BTC_USDT".
func DisplayPair(symbol string) string {
	return symbol + "_" + QuoteAsset
}
