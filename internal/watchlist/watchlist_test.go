package watchlist

import (
	"errors"
	"reflect"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"btc", "BTC", false},
		{" eth_usdt ", "ETH", false},
		{"SOLUSDT", "SOL", false},
		{"1INCH", "", true},
		{"B", "", true},
		{"VERYLONGNAME", "", true},
		{"BT-C", "", true},
		{"AAA", "", true},
		{"TEST", "", true},
		{"USDT", "", true},
		{"ПРИВЕТ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Validate(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSymbol) {
					t.Fatalf("Validate(%q) error = %v, want ErrInvalidSymbol", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("Validate(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestWatchlist_AddRemove(t *testing.T) {
	w := New([]string{"BTC", "eth", "bad-symbol"})
	if w.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", w.Len())
	}

	sym, added, err := w.Add("sol_usdt")
	if err != nil || !added || sym != "SOL" {
		t.Fatalf("Add(sol_usdt) = %q, %v, %v", sym, added, err)
	}
	if _, added, _ := w.Add("SOL"); added {
		t.Error("duplicate Add reported as added")
	}
	if _, _, err := w.Add("x"); err == nil {
		t.Error("Add accepted an invalid symbol")
	}

	if _, removed := w.Remove("btcusdt"); !removed {
		t.Error("Remove(btcusdt) did not remove BTC")
	}
	if _, removed := w.Remove("BTC"); removed {
		t.Error("second Remove reported success")
	}
	if w.Contains("BTC") || !w.Contains("eth") {
		t.Errorf("unexpected membership: %v", w.Sorted())
	}

	if got := w.Sorted(); !reflect.DeepEqual(got, []string{"ETH", "SOL"}) {
		t.Errorf("Sorted() = %v", got)
	}
}

func TestDefaultSymbolsAreValid(t *testing.T) {
	w := New(DefaultSymbols)
	if w.Len() != len(DefaultSymbols) {
		t.Errorf("only %d of %d default symbols accepted", w.Len(), len(DefaultSymbols))
	}
}
