package notifier

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"MexcPulse/internal/model"
	"MexcPulse/internal/report"
)

type op struct {
	kind string
	id   int64
	text string
}

type fakeMessenger struct {
	ops     []op
	next    int64
	editErr error
	sendErr error
}

func (f *fakeMessenger) Send(_ context.Context, text string) (int64, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.next++
	f.ops = append(f.ops, op{"send", f.next, text})
	return f.next, nil
}

func (f *fakeMessenger) Edit(_ context.Context, id int64, text string) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.ops = append(f.ops, op{"edit", id, text})
	return nil
}

func (f *fakeMessenger) Delete(_ context.Context, id int64) error {
	f.ops = append(f.ops, op{"delete", id, ""})
	return nil
}

func (f *fakeMessenger) kinds() string {
	parts := make([]string, len(f.ops))
	for i, o := range f.ops {
		parts[i] = o.kind
	}
	return strings.Join(parts, ",")
}

func btcSnapshot(volume float64) model.Snapshot {
	return model.Snapshot{Symbol: "BTC", Price: 101, Volume: volume, Spread: 0.2, NATR: 1.5, Change: 0.8, Trades: 40, Active: true}
}

func newSink(m Messenger) *TelegramSink {
	return NewTelegramSink(m, DefaultMinReportedDuration, report.DefaultOptions(), zerolog.Nop())
}

func TestTelegramSink_ActivationLifecycle(t *testing.T) {
	m := &fakeMessenger{}
	s := newSink(m)
	ctx := context.Background()

	h, err := s.Activated(ctx, model.ActivatedEvent{Symbol: "BTC", Snapshot: btcSnapshot(5000)})
	if err != nil || h != 1 {
		t.Fatalf("Activated = %d, %v", h, err)
	}
	if !strings.Contains(m.ops[0].text, "BTC_USDT is active") || !strings.Contains(m.ops[0].text, "$5,000") {
		t.Errorf("activation text = %q", m.ops[0].text)
	}

	// identical snapshot: no edit
	if err := s.Updated(ctx, h, model.UpdatedEvent{Symbol: "BTC", Snapshot: btcSnapshot(5000)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Updated(ctx, h, model.UpdatedEvent{Symbol: "BTC", Snapshot: btcSnapshot(6500)}); err != nil {
		t.Fatal(err)
	}
	if got := m.kinds(); got != "send,edit" {
		t.Fatalf("ops = %s, want send,edit", got)
	}
}

func TestTelegramSink_Deactivated(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"short activity only deletes", 59 * time.Second, "delete"},
		{"long activity reports end", 61 * time.Second, "delete,send"},
		{"exact threshold reports end", 60 * time.Second, "delete,send"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMessenger{}
			s := newSink(m)
			err := s.Deactivated(context.Background(), 7, model.DeactivatedEvent{Symbol: "SOL", Duration: tt.duration})
			if err != nil {
				t.Fatalf("Deactivated: %v", err)
			}
			if got := m.kinds(); got != tt.want {
				t.Fatalf("ops = %s, want %s", got, tt.want)
			}
			if m.ops[0].id != 7 {
				t.Errorf("deleted id %d, want 7", m.ops[0].id)
			}
		})
	}
}

func TestTelegramSink_EndedGateCountsInactivityWindow(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ev   model.DeactivatedEvent
		want string
	}{
		{
			name: "active 40s then 30s timeout",
			ev:   model.DeactivatedEvent{Symbol: "SOL", Start: start, LastActive: start.Add(40 * time.Second), End: start.Add(71 * time.Second), Duration: 40 * time.Second},
			want: "delete,send",
		},
		{
			name: "whole window under a minute",
			ev:   model.DeactivatedEvent{Symbol: "SOL", Start: start, LastActive: start.Add(10 * time.Second), End: start.Add(41 * time.Second), Duration: 10 * time.Second},
			want: "delete",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMessenger{}
			s := newSink(m)
			if err := s.Deactivated(context.Background(), 7, tt.ev); err != nil {
				t.Fatalf("Deactivated: %v", err)
			}
			if got := m.kinds(); got != tt.want {
				t.Fatalf("ops = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTelegramSink_DeactivatedWithoutMessage(t *testing.T) {
	m := &fakeMessenger{}
	s := newSink(m)
	if err := s.Deactivated(context.Background(), 0, model.DeactivatedEvent{Symbol: "SOL", Duration: 2 * time.Minute}); err != nil {
		t.Fatal(err)
	}
	if got := m.kinds(); got != "send" {
		t.Fatalf("ops = %s, want send", got)
	}
	if !strings.Contains(m.ops[0].text, "2 min 0 sec") {
		t.Errorf("ended text = %q", m.ops[0].text)
	}
}

func TestTelegramSink_ReportCreateEditRecreate(t *testing.T) {
	m := &fakeMessenger{}
	s := newSink(m)
	ctx := context.Background()

	h, err := s.Report(ctx, 0, model.ReportReady{Payload: "first"})
	if err != nil || h != 1 {
		t.Fatalf("Report create = %d, %v", h, err)
	}
	if h2, _ := s.Report(ctx, h, model.ReportReady{Payload: "first", IsUpdate: true}); h2 != h {
		t.Fatalf("unchanged report changed handle to %d", h2)
	}
	if h2, _ := s.Report(ctx, h, model.ReportReady{Payload: "second", IsUpdate: true}); h2 != h {
		t.Fatalf("edited report changed handle to %d", h2)
	}
	if got := m.kinds(); got != "send,edit" {
		t.Fatalf("ops = %s, want send,edit", got)
	}

	m.editErr = ErrMessageNotFound
	h3, err := s.Report(ctx, h, model.ReportReady{Payload: "third", IsUpdate: true})
	if err != nil {
		t.Fatalf("Report recreate: %v", err)
	}
	if h3 == h {
		t.Fatal("recreated report kept the stale handle")
	}

	if err := s.Release(ctx, h3); err != nil {
		t.Fatal(err)
	}
	if last := m.ops[len(m.ops)-1]; last.kind != "delete" || last.id != int64(h3) {
		t.Fatalf("last op = %+v", last)
	}
}

func TestTelegramSink_ReportTruncates(t *testing.T) {
	m := &fakeMessenger{}
	s := NewTelegramSink(m, DefaultMinReportedDuration, report.Options{MaxEntries: 20, MaxChars: 10}, zerolog.Nop())
	if _, err := s.Report(context.Background(), 0, model.ReportReady{Payload: strings.Repeat("x", 50)}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(m.ops[0].text, report.TruncationMarker) {
		t.Fatalf("payload not truncated: %q", m.ops[0].text)
	}
}
