package watchlist

import (
	"errors"
	"fmt"
	"unicode"

	"MexcPulse/internal/model"
)

// ErrInvalidSymbol is returned for input that cannot name a listed asset.
var ErrInvalidSymbol = errors.New("invalid symbol")

var reserved = map[string]bool{
	"USDT": true, "USD": true, "TEST": true, "NULL": true,
	"NONE": true, "ADMIN": true, "ROOT": true, "API": true,
}

// Validate normalizes raw input and checks it is a plausible base asset.
func Validate(raw string) (string, error) {
	sym := model.NormalizeSymbol(raw)
	if n := len(sym); n < 2 || n > 10 {
		return "", fmt.Errorf("%w: %q must be 2-10 characters", ErrInvalidSymbol, raw)
	}
	for _, r := range sym {
		if r > unicode.MaxASCII || !(unicode.IsUpper(r) || unicode.IsDigit(r)) {
			return "", fmt.Errorf("%w: %q must be alphanumeric", ErrInvalidSymbol, raw)
		}
	}
	if unicode.IsDigit(rune(sym[0])) {
		return "", fmt.Errorf("%w: %q must not start with a digit", ErrInvalidSymbol, raw)
	}
	if reserved[sym] {
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidSymbol, raw)
	}
	same := true
	for i := 1; i < len(sym); i++ {
		if sym[i] != sym[0] {
			same = false
			break
		}
	}
	if same {
		return "", fmt.Errorf("%w: %q repeats one character", ErrInvalidSymbol, raw)
	}
	return sym, nil
}
