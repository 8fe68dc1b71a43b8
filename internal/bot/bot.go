// Package bot turns chat commands into engine control calls.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"MexcPulse/internal/engine"
	"MexcPulse/internal/model"
	"MexcPulse/internal/notifier"
	"MexcPulse/internal/settings"
	"MexcPulse/internal/store"
)

// Controller is the engine control surface.
type Controller interface {
	Start(mode model.Mode) error
	Stop() error
	SetConfig(partial map[string]string) (settings.Thresholds, error)
	AddSymbol(raw string) (string, bool, error)
	RemoveSymbol(raw string) (string, bool)
	Status() engine.Status
	Watchlist() []string
	Thresholds() settings.Thresholds
}

// Bot handles chat commands. Every mutation is persisted before the reply.
type Bot struct {
	ctl      Controller
	store    store.Store
	sessions *Sessions
	log      zerolog.Logger
}

// New creates a bot. st may be nil to skip persistence.
func New(ctl Controller, st store.Store, sessions *Sessions, log zerolog.Logger) *Bot {
	return &Bot{
		ctl:      ctl,
		store:    st,
		sessions: sessions,
		log:      log.With().Str("component", "bot").Logger(),
	}
}

// HandleCommand processes a user command and returns a reply.
func (b *Bot) HandleCommand(_ context.Context, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	switch cmd {
	case "/notify", "/notification":
		return b.start(model.ModeNotification)
	case "/monitor", "/monitoring":
		return b.start(model.ModeMonitoring)
	case "/stop":
		return b.stop()
	case "/add":
		return b.add(args)
	case "/remove", "/rm":
		return b.remove(args)
	case "/list":
		return formatWatchlist(b.ctl.Watchlist())
	case "/set":
		return b.set(args)
	case "/settings":
		return formatThresholds(b.ctl.Thresholds())
	case "/status":
		return formatStatus(b.ctl.Status(), b.sessionState())
	default:
		return helpText
	}
}

// Resume restarts the mode that was running when the process last exited.
func (b *Bot) Resume(mode model.Mode) error {
	if mode == "" {
		return nil
	}
	if err := b.ctl.Start(mode); err != nil {
		return err
	}
	b.log.Info().Str("mode", string(mode)).Msg("resumed last mode")
	b.recordStart(mode)
	return nil
}

func (b *Bot) start(mode model.Mode) string {
	err := b.ctl.Start(mode)
	if errors.Is(err, engine.ErrAlreadyRunning) {
		return fmt.Sprintf("ℹ️ %s mode is already running.", modeTitle(mode))
	}
	if err != nil {
		b.log.Error().Err(err).Str("mode", string(mode)).Msg("start failed")
		return "❌ Could not start: " + err.Error()
	}
	b.recordStart(mode)
	return notifier.FormatModeStarted(mode, len(b.ctl.Watchlist()))
}

func (b *Bot) recordStart(mode model.Mode) {
	if b.sessions == nil {
		return
	}
	if err := b.sessions.Started(mode); err != nil {
		b.log.Warn().Err(err).Msg("save bot state failed")
	}
}

func (b *Bot) stop() string {
	if err := b.ctl.Stop(); errors.Is(err, engine.ErrNotRunning) {
		return "ℹ️ Nothing is running."
	} else if err != nil {
		return "❌ Could not stop: " + err.Error()
	}
	if b.sessions != nil {
		if err := b.sessions.Stopped(); err != nil {
			b.log.Warn().Err(err).Msg("save bot state failed")
		}
	}
	return "⏹ Stopped."
}

func (b *Bot) add(args []string) string {
	if len(args) == 0 {
		return "Usage: /add SYMBOL [SYMBOL...]"
	}
	var added, present, invalid []string
	for _, raw := range args {
		sym, ok, err := b.ctl.AddSymbol(raw)
		switch {
		case err != nil:
			invalid = append(invalid, raw)
		case ok:
			added = append(added, sym)
		default:
			present = append(present, sym)
		}
	}
	if len(added) > 0 {
		b.persistWatchlist()
	}

	var lines []string
	if len(added) > 0 {
		lines = append(lines, "✅ Added: "+strings.Join(added, ", "))
	}
	if len(present) > 0 {
		lines = append(lines, "ℹ️ Already watched: "+strings.Join(present, ", "))
	}
	if len(invalid) > 0 {
		lines = append(lines, "❌ Invalid symbol: "+strings.Join(invalid, ", "))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) remove(args []string) string {
	if len(args) == 0 {
		return "Usage: /remove SYMBOL [SYMBOL...]"
	}
	var removed, missing []string
	for _, raw := range args {
		if sym, ok := b.ctl.RemoveSymbol(raw); ok {
			removed = append(removed, sym)
		} else {
			missing = append(missing, model.NormalizeSymbol(raw))
		}
	}
	if len(removed) > 0 {
		b.persistWatchlist()
	}

	var lines []string
	if len(removed) > 0 {
		lines = append(lines, "🗑 Removed: "+strings.Join(removed, ", "))
	}
	if len(missing) > 0 {
		lines = append(lines, "ℹ️ Not in watchlist: "+strings.Join(missing, ", "))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) set(args []string) string {
	if len(args) != 2 {
		return "Usage: /set KEY VALUE\nKeys: " + strings.Join(settings.Keys(), ", ")
	}
	th, err := b.ctl.SetConfig(map[string]string{args[0]: args[1]})
	var inv *settings.InvalidInputError
	switch {
	case errors.As(err, &inv):
		return fmt.Sprintf("❌ %s rejected for %s: %s.\nTry again: /set %s VALUE", inv.Value, inv.Key, inv.Reason, strings.ToUpper(args[0]))
	case errors.Is(err, settings.ErrUnknownKey):
		return "❌ Unknown key. Keys: " + strings.Join(settings.Keys(), ", ")
	case err != nil:
		return "❌ " + err.Error()
	}
	if b.store != nil {
		if err := b.store.SaveSettings(th.ToMap()); err != nil {
			b.log.Error().Err(err).Msg("save settings failed")
			return "⚠️ Applied, but saving failed: " + err.Error()
		}
	}
	return "✅ Updated. Applies from the next batch.\n\n" + formatThresholds(th)
}

func (b *Bot) persistWatchlist() {
	if b.store == nil {
		return
	}
	if err := b.store.SaveWatchlist(b.ctl.Watchlist()); err != nil {
		b.log.Error().Err(err).Msg("save watchlist failed")
	}
}

func (b *Bot) sessionState() model.BotState {
	if b.sessions == nil {
		return model.BotState{}
	}
	return b.sessions.State()
}

func modeTitle(m model.Mode) string {
	if m == model.ModeMonitoring {
		return "Monitoring"
	}
	return "Notification"
}
