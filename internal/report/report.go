package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"MexcPulse/internal/model"
	"MexcPulse/internal/settings"
)

// TruncationMarker is appended to payloads cut at the size cap.
const TruncationMarker = "\n… <i>(report truncated)</i>"

const maxFailedShown = 5

// Options bound the size of a payload.
type Options struct {
	MaxEntries int
	MaxChars   int
}

// DefaultOptions fit a single Telegram message.
func DefaultOptions() Options {
	return Options{MaxEntries: 20, MaxChars: 4000}
}

// Input is one full monitoring cycle.
type Input struct {
	Snapshots  []model.Snapshot
	Failed     []string
	Stale      map[string]model.Snapshot
	Thresholds settings.Thresholds
	At         time.Time
}

// Build renders the ranked report for one cycle. With no snapshots at all
// it renders the no-data payload instead of an empty ranking.
func Build(in Input, opts Options) string {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultOptions().MaxEntries
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultOptions().MaxChars
	}
	if len(in.Snapshots) == 0 {
		return Truncate(NoData(in), opts.MaxChars)
	}

	ranked := Rank(in.Snapshots)

	var b strings.Builder
	writeHeader(&b, in.Thresholds)
	writeFailed(&b, in.Failed, in.Stale)

	activeCount := 0
	for _, s := range ranked {
		if s.Active {
			activeCount++
		}
	}

	shown := min(len(ranked), opts.MaxEntries)
	for _, s := range ranked[:shown] {
		b.WriteString(formatEntry(s))
		b.WriteByte('\n')
	}
	if rest := len(ranked) - shown; rest > 0 {
		fmt.Fprintf(&b, "<i>+%d more</i>\n", rest)
	}

	fmt.Fprintf(&b, "\n📈 Active: %d/%d", activeCount, len(ranked))
	writeFooter(&b, in.At)
	return Truncate(b.String(), opts.MaxChars)
}

// Rank returns a copy of snaps ordered by volume, highest first. Ties are
// broken by symbol so output is deterministic.
func Rank(snaps []model.Snapshot) []model.Snapshot {
	out := append([]model.Snapshot(nil), snaps...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Volume != out[j].Volume {
			return out[i].Volume > out[j].Volume
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// NoData renders the payload for a cycle in which every symbol failed.
func NoData(in Input) string {
	var b strings.Builder
	writeHeader(&b, in.Thresholds)
	b.WriteString("❌ <b>No data</b>: the exchange returned nothing usable this cycle.\n")
	writeFailed(&b, in.Failed, in.Stale)
	writeFooter(&b, in.At)
	return b.String()
}

// EmptyWatchlist renders the payload shown while there is nothing to watch.
func EmptyWatchlist(at time.Time) string {
	var b strings.Builder
	b.WriteString("<b>📊 Scalping monitor (1m data)</b>\n\n")
	b.WriteString("📝 The watchlist is empty. Add symbols with /add SYMBOL.")
	writeFooter(&b, at)
	return b.String()
}

// Starting renders the placeholder created when a monitoring run begins.
func Starting(symbols int) string {
	return fmt.Sprintf("<b>📊 Scalping monitor (1m data)</b>\n\n⏳ Starting, first pass over %d symbols…", symbols)
}

// Truncate cuts s to at most limit characters and appends TruncationMarker
// when anything was removed. The cut falls on the last line break that
// fits, so every HTML tag opened on a kept line is also closed on it.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	head := s
	n := 0
	for i := range s {
		if n == limit {
			head = s[:i]
			break
		}
		n++
	}
	if nl := strings.LastIndexByte(head, '\n'); nl >= 0 {
		return strings.TrimRight(head[:nl], "\n") + TruncationMarker
	}
	return stripTags(head) + TruncationMarker
}

// stripTags drops markup from a single over-long line, including a tag
// left open by the cut.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func writeHeader(b *strings.Builder, th settings.Thresholds) {
	b.WriteString("<b>📊 Scalping monitor (1m data)</b>\n")
	fmt.Fprintf(b, "<i>Filters: 1m volume ≥ $%s, spread ≥ %.2f%%, NATR ≥ %.2f%%</i>\n\n",
		money(th.VolumeThreshold), th.SpreadThreshold, th.NATRThreshold)
}

func writeFailed(b *strings.Builder, failed []string, stale map[string]model.Snapshot) {
	if len(failed) == 0 {
		return
	}
	sorted := append([]string(nil), failed...)
	sort.Strings(sorted)

	shown := min(len(sorted), maxFailedShown)
	parts := make([]string, 0, shown)
	for _, sym := range sorted[:shown] {
		if s, ok := stale[sym]; ok {
			parts = append(parts, fmt.Sprintf("%s (last $%s)", sym, money(s.Volume)))
			continue
		}
		parts = append(parts, sym)
	}
	line := strings.Join(parts, ", ")
	if rest := len(sorted) - shown; rest > 0 {
		line += fmt.Sprintf(" +%d", rest)
	}
	fmt.Fprintf(b, "⚠ <i>Failed (%d): %s</i>\n\n", len(sorted), line)
}

func writeFooter(b *strings.Builder, at time.Time) {
	if at.IsZero() {
		return
	}
	fmt.Fprintf(b, "\n🕒 %s UTC", at.UTC().Format("15:04:05"))
}

func formatEntry(s model.Snapshot) string {
	marker := "🔴"
	if s.Active {
		marker = "🟢"
	}
	return fmt.Sprintf("%s <b>%s</b> $%s | %+.1f%% | T:%d | S:%.2f%% | N:%.2f%%",
		marker, s.Symbol, money(s.Volume), s.Change, s.Trades, s.Spread, s.NATR)
}

func money(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}
