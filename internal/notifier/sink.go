package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"MexcPulse/internal/model"
	"MexcPulse/internal/report"
)

// DefaultMinReportedDuration is the shortest activity window that gets an
// "ended" message.
const DefaultMinReportedDuration = 60 * time.Second

// Messenger is the subset of the Bot API a TelegramSink needs.
type Messenger interface {
	Send(ctx context.Context, text string) (int64, error)
	Edit(ctx context.Context, id int64, text string) error
	Delete(ctx context.Context, id int64) error
}

// TelegramSink renders engine events as chat messages. Handles are
// Telegram message ids.
type TelegramSink struct {
	Messenger           Messenger
	MinReportedDuration time.Duration
	ReportOpts          report.Options
	Log                 zerolog.Logger

	mu   sync.Mutex
	last map[model.Handle]string
}

// NewTelegramSink creates a sink over m.
func NewTelegramSink(m Messenger, minReported time.Duration, opts report.Options, log zerolog.Logger) *TelegramSink {
	return &TelegramSink{
		Messenger:           m,
		MinReportedDuration: minReported,
		ReportOpts:          opts,
		Log:                 log.With().Str("component", "telegram_sink").Logger(),
		last:                make(map[model.Handle]string),
	}
}

func (s *TelegramSink) Activated(ctx context.Context, ev model.ActivatedEvent) (model.Handle, error) {
	text := FormatActivation(ev.Snapshot)
	id, err := s.Messenger.Send(ctx, text)
	if err != nil {
		return 0, err
	}
	h := model.Handle(id)
	s.remember(h, text)
	return h, nil
}

func (s *TelegramSink) Updated(ctx context.Context, h model.Handle, ev model.UpdatedEvent) error {
	if h == 0 {
		return nil
	}
	text := FormatActivation(ev.Snapshot)
	if !s.changed(h, text) {
		return nil
	}
	if err := s.Messenger.Edit(ctx, int64(h), text); err != nil {
		return err
	}
	s.remember(h, text)
	return nil
}

func (s *TelegramSink) Deactivated(ctx context.Context, h model.Handle, ev model.DeactivatedEvent) error {
	var errs []error
	if h != 0 {
		if err := s.Messenger.Delete(ctx, int64(h)); err != nil {
			errs = append(errs, err)
		}
		s.forget(h)
	}
	if span := trackedFor(ev); span >= s.MinReportedDuration {
		if _, err := s.Messenger.Send(ctx, FormatEnded(ev)); err != nil {
			errs = append(errs, err)
		}
	} else {
		s.Log.Debug().Str("symbol", ev.Symbol).Dur("tracked", span).Msg("activity too short to report")
	}
	return errors.Join(errs...)
}

// trackedFor is how long the symbol held its alert message, from
// activation to eviction. It counts the inactivity window, unlike
// ev.Duration.
func trackedFor(ev model.DeactivatedEvent) time.Duration {
	if ev.Start.IsZero() || ev.End.IsZero() {
		return ev.Duration
	}
	return ev.End.Sub(ev.Start)
}

// Report creates the monitoring message when h is zero and edits it
// otherwise. If the message was deleted from the chat a new one is created
// and its handle returned.
func (s *TelegramSink) Report(ctx context.Context, h model.Handle, ev model.ReportReady) (model.Handle, error) {
	text := report.Truncate(ev.Payload, s.ReportOpts.MaxChars)
	if h != 0 {
		if !s.changed(h, text) {
			return h, nil
		}
		err := s.Messenger.Edit(ctx, int64(h), text)
		if err == nil {
			s.remember(h, text)
			return h, nil
		}
		if !errors.Is(err, ErrMessageNotFound) {
			return h, err
		}
		s.forget(h)
		s.Log.Info().Int64("message_id", int64(h)).Msg("report message gone, sending a new one")
	}
	id, err := s.Messenger.Send(ctx, text)
	if err != nil {
		return h, err
	}
	nh := model.Handle(id)
	s.remember(nh, text)
	return nh, nil
}

// Release deletes the message behind h.
func (s *TelegramSink) Release(ctx context.Context, h model.Handle) error {
	if h == 0 {
		return nil
	}
	s.forget(h)
	return s.Messenger.Delete(ctx, int64(h))
}

func (s *TelegramSink) changed(h model.Handle, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[h] != text
}

func (s *TelegramSink) remember(h model.Handle, text string) {
	s.mu.Lock()
	s.last[h] = text
	s.mu.Unlock()
}

func (s *TelegramSink) forget(h model.Handle) {
	s.mu.Lock()
	delete(s.last, h)
	s.mu.Unlock()
}
