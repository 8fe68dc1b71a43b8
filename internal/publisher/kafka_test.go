package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"MexcPulse/internal/model"
)

type memWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink_PublishesEnvelopes(t *testing.T) {
	w := &memWriter{}
	k := newKafkaSink(w, "events", zerolog.Nop())
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return at }
	ctx := context.Background()

	snap := model.Snapshot{Symbol: "BTC", Volume: 5000, Active: true}
	if h, err := k.Activated(ctx, model.ActivatedEvent{Symbol: "BTC", Snapshot: snap}); err != nil || h != 0 {
		t.Fatalf("Activated = %d, %v", h, err)
	}
	if err := k.Deactivated(ctx, 12, model.DeactivatedEvent{Symbol: "BTC", Duration: 90 * time.Second}); err != nil {
		t.Fatal(err)
	}
	if _, err := k.Report(ctx, 0, model.ReportReady{Payload: "report"}); err != nil {
		t.Fatal(err)
	}

	if len(w.msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "BTC" {
		t.Errorf("key = %q", w.msgs[0].Key)
	}
	var env struct {
		Type   string         `json:"type"`
		Symbol string         `json:"symbol"`
		Data   model.Snapshot `json:"data"`
	}
	if err := json.Unmarshal(w.msgs[0].Value, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != TypeActivated || env.Symbol != "BTC" || env.Data.Volume != 5000 {
		t.Fatalf("envelope = %+v", env)
	}

	var report Envelope
	if err := json.Unmarshal(w.msgs[2].Value, &report); err != nil {
		t.Fatal(err)
	}
	if report.Type != TypeReport || report.Symbol != "" {
		t.Fatalf("report envelope = %+v", report)
	}

	if err := k.Close(); err != nil || !w.closed {
		t.Fatal("writer not closed")
	}
}

func TestKafkaSink_WriteError(t *testing.T) {
	w := &memWriter{err: errors.New("leader not available")}
	k := newKafkaSink(w, "events", zerolog.Nop())
	if err := k.Updated(context.Background(), 0, model.UpdatedEvent{Symbol: "ETH"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewKafkaSink_RequiresBrokers(t *testing.T) {
	if _, err := NewKafkaSink(nil, "events", zerolog.Nop()); err == nil {
		t.Fatal("expected error")
	}
}
