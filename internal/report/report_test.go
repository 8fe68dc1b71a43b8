package report

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"MexcPulse/internal/model"
	"MexcPulse/internal/settings"
)

func snaps(n int) []model.Snapshot {
	out := make([]model.Snapshot, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Snapshot{
			Symbol: fmt.Sprintf("C%02d", i),
			Volume: float64(1000 + i*100),
			Active: i%2 == 0,
		})
	}
	return out
}

func TestBuild_CapsEntries(t *testing.T) {
	payload := Build(Input{Snapshots: snaps(25), Thresholds: settings.Defaults()}, DefaultOptions())

	lines := 0
	for _, l := range strings.Split(payload, "\n") {
		if strings.HasPrefix(l, "🟢") || strings.HasPrefix(l, "🔴") {
			lines++
		}
	}
	if lines != 20 {
		t.Errorf("rendered %d entries, want 20", lines)
	}
	if !strings.Contains(payload, "+5 more") {
		t.Errorf("missing +5 more marker:\n%s", payload)
	}
	if !strings.Contains(payload, "Active: 13/25") {
		t.Errorf("missing active footer:\n%s", payload)
	}
}

func TestBuild_SortedByVolumeDesc(t *testing.T) {
	in := Input{Snapshots: []model.Snapshot{
		{Symbol: "LOW", Volume: 10},
		{Symbol: "HIGH", Volume: 9000},
		{Symbol: "MID", Volume: 500},
	}}
	payload := Build(in, DefaultOptions())
	hi, mid, lo := strings.Index(payload, "HIGH"), strings.Index(payload, "MID"), strings.Index(payload, "LOW")
	if !(hi < mid && mid < lo) {
		t.Errorf("entries not ranked by volume:\n%s", payload)
	}
}

func TestBuild_NoData(t *testing.T) {
	payload := Build(Input{Failed: []string{"BTC", "ETH"}}, DefaultOptions())
	if !strings.Contains(payload, "No data") {
		t.Errorf("expected no-data payload:\n%s", payload)
	}
	if !strings.Contains(payload, "BTC") || strings.Contains(payload, "Active:") {
		t.Errorf("no-data payload should list failures and no ranking:\n%s", payload)
	}
}

func TestBuild_FailedListBoundedAndAnnotated(t *testing.T) {
	in := Input{
		Snapshots: snaps(1),
		Failed:    []string{"G", "F", "E", "D", "C", "B", "A"},
		Stale:     map[string]model.Snapshot{"A": {Symbol: "A", Volume: 12345}},
	}
	payload := Build(in, DefaultOptions())
	if !strings.Contains(payload, "Failed (7): A (last $12,345), B, C, D, E +2") {
		t.Errorf("unexpected failed line:\n%s", payload)
	}
}

func TestBuild_TruncatesToCap(t *testing.T) {
	opts := Options{MaxEntries: 1000, MaxChars: 4000}
	payload := Build(Input{Snapshots: snaps(200), At: time.Now()}, opts)

	if !strings.HasSuffix(payload, TruncationMarker) {
		t.Fatalf("payload not marked as truncated")
	}
	body := strings.TrimSuffix(payload, TruncationMarker)
	if n := utf8.RuneCountInString(body); n > 4000 {
		t.Errorf("truncated body has %d characters, want at most 4000", n)
	}
}

// balanced reports whether every tag in s is complete and closed in order.
func balanced(s string) bool {
	var open []string
	for {
		i := strings.IndexByte(s, '<')
		if i < 0 {
			return len(open) == 0
		}
		j := strings.IndexByte(s[i:], '>')
		if j < 0 {
			return false
		}
		tag := s[i+1 : i+j]
		s = s[i+j+1:]
		if strings.HasPrefix(tag, "/") {
			if len(open) == 0 || open[len(open)-1] != tag[1:] {
				return false
			}
			open = open[:len(open)-1]
			continue
		}
		open = append(open, tag)
	}
}

func TestBuild_TruncationKeepsMarkupBalanced(t *testing.T) {
	in := Input{Snapshots: snaps(20), Failed: []string{"X", "Y"}, At: time.Now()}
	for limit := 200; limit < 1200; limit++ {
		payload := Build(in, Options{MaxEntries: 20, MaxChars: limit})
		if !balanced(payload) {
			t.Fatalf("limit %d: unbalanced markup:\n%s", limit, payload)
		}
		body := strings.TrimSuffix(payload, TruncationMarker)
		if n := utf8.RuneCountInString(body); n > limit {
			t.Fatalf("limit %d: body has %d characters", limit, n)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short", "hello", 4000, "hello"},
		{"cuts at line break", "<b>a</b>\n<b>bb</b>\n<b>ccc</b>", 20, "<b>a</b>\n<b>bb</b>" + TruncationMarker},
		{"mid tag", "<b>a</b>\n<b>bbbb</b>", 12, "<b>a</b>" + TruncationMarker},
		{"single line", "<b>abcdef</b>", 6, "abc" + TruncationMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.limit); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}

	long := strings.Repeat("🟢ab\n", 2000)
	got := Truncate(long, 4000)
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a multi-byte character")
	}
	if !strings.HasSuffix(got, "ab"+TruncationMarker) {
		t.Errorf("expected cut after a whole line, got tail %q", got[len(got)-40:])
	}
}

func TestEmptyWatchlistDistinct(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	empty := EmptyWatchlist(at)
	noData := NoData(Input{At: at})
	if empty == noData {
		t.Error("empty-watchlist and no-data payloads must differ")
	}
}
