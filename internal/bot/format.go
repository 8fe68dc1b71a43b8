package bot

import (
	"fmt"
	"strings"
	"time"

	"MexcPulse/internal/engine"
	"MexcPulse/internal/model"
	"MexcPulse/internal/settings"
)

const helpText = `<b>MEXC Pulse</b>
/notify - alert on active symbols
/monitor - live ranked report
/stop - stop the running mode
/add SYMBOL... - watch symbols
/remove SYMBOL... - unwatch symbols
/list - show the watchlist
/set KEY VALUE - change a threshold
/settings - show thresholds
/status - engine status`

func formatWatchlist(symbols []string) string {
	if len(symbols) == 0 {
		return "📝 The watchlist is empty. Add symbols with /add SYMBOL."
	}
	return fmt.Sprintf("📝 <b>Watchlist (%d)</b>\n%s", len(symbols), strings.Join(symbols, ", "))
}

func formatThresholds(th settings.Thresholds) string {
	values := th.ToMap()
	var b strings.Builder
	b.WriteString("⚙️ <b>Settings</b>\n")
	for _, k := range settings.Keys() {
		fmt.Fprintf(&b, "<code>%s</code> = %g\n", k, values[k])
	}
	b.WriteString("<i>Durations are in seconds.</i>")
	return b.String()
}

func formatStatus(st engine.Status, session model.BotState) string {
	var b strings.Builder
	b.WriteString("📟 <b>Status</b>\n")
	if st.Running {
		fmt.Fprintf(&b, "Mode: %s (since %s UTC)\n", st.Mode, st.Since.UTC().Format("2006-01-02 15:04:05"))
	} else {
		b.WriteString("Mode: stopped\n")
	}
	fmt.Fprintf(&b, "Watchlist: %d symbols\n", st.Watchlist)
	fmt.Fprintf(&b, "Cycles: %d\n", st.Cycles)
	if len(st.Active) > 0 {
		fmt.Fprintf(&b, "Active: %s\n", strings.Join(st.Active, ", "))
	}
	fmt.Fprintf(&b, "Sessions: %d, total uptime %s", session.SessionCount, uptime(session.TotalUptime))
	return b.String()
}

func uptime(seconds float64) string {
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}
