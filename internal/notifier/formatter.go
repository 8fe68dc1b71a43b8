package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"MexcPulse/internal/model"
)

// FormatActivation renders the live message of an active symbol. Updates
// re-render the same template so edits only change the numbers.
func FormatActivation(s model.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 <b>%s is active</b>\n", model.DisplayPair(s.Symbol))
	fmt.Fprintf(&b, "🔄 Change: %+.2f%%  🔁 Trades: %d\n", s.Change, s.Trades)
	fmt.Fprintf(&b, "📊 Volume: $%s  NATR: %.2f%%\n", humanize.CommafWithDigits(s.Volume, 2), s.NATR)
	fmt.Fprintf(&b, "⇄ Spread: %.2f%%", s.Spread)
	return b.String()
}

// FormatEnded renders the summary sent after a long enough activity window.
func FormatEnded(ev model.DeactivatedEvent) string {
	d := ev.Duration.Round(time.Second)
	return fmt.Sprintf("✅ <b>%s activity ended</b>\n⏱ Duration: %d min %d sec",
		model.DisplayPair(ev.Symbol), int(d.Minutes()), int(d.Seconds())%60)
}

// FormatModeStarted renders the acknowledgement sent when a run begins.
func FormatModeStarted(mode model.Mode, symbols int) string {
	switch mode {
	case model.ModeMonitoring:
		return fmt.Sprintf("📊 <b>Monitoring mode started</b>\nWatching %d symbols.", symbols)
	default:
		return fmt.Sprintf("✅ <b>Notification mode started</b>\nWatching %d symbols for activity.", symbols)
	}
}
