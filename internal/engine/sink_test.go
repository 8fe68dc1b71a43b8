package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"MexcPulse/internal/model"
)

type failingSink struct{ recordingSink }

func (f *failingSink) Activated(ctx context.Context, ev model.ActivatedEvent) (model.Handle, error) {
	f.recordingSink.Activated(ctx, ev)
	return 0, errors.New("broker down")
}

// blockingSink holds every Activated call until release is closed.
type blockingSink struct {
	recordingSink
	release chan struct{}
}

func (b *blockingSink) Activated(ctx context.Context, ev model.ActivatedEvent) (model.Handle, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return b.recordingSink.Activated(ctx, ev)
}

func TestMultiSink_PrimaryHandlesAreAuthoritative(t *testing.T) {
	primary := &recordingSink{next: 100}
	secondary := &failingSink{}
	m := NewMultiSink(primary, []Sink{secondary}, 0, 0, zerolog.Nop())
	ctx := context.Background()

	h, err := m.Activated(ctx, model.ActivatedEvent{Symbol: "BTC"})
	if err != nil || h != 101 {
		t.Fatalf("Activated = %d, %v; want primary handle 101", h, err)
	}
	if err := m.Updated(ctx, h, model.UpdatedEvent{Symbol: "BTC"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Release(ctx, h); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	if got := secondary.snapshot(); len(got) != 2 || got[1].handle != 0 {
		t.Fatalf("secondary calls = %+v, want two calls with zero handle", got)
	}
	if primary.count("release") != 1 || secondary.count("release") != 0 {
		t.Fatal("release must only reach the primary sink")
	}
}

func TestMultiSink_BlockedSecondaryDoesNotDelayPrimary(t *testing.T) {
	primary := &recordingSink{}
	secondary := &blockingSink{release: make(chan struct{})}
	m := NewMultiSink(primary, []Sink{secondary}, 1, time.Minute, zerolog.Nop())
	ctx := context.Background()

	start := time.Now()
	for _, sym := range []string{"BTC", "ETH", "SOL"} {
		if _, err := m.Activated(ctx, model.ActivatedEvent{Symbol: sym}); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Activated took %v with a blocked secondary", elapsed)
	}
	if primary.count("activated") != 3 {
		t.Fatalf("primary activations = %d, want 3", primary.count("activated"))
	}

	close(secondary.release)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	// One call is in flight and one is queued; the third overflowed.
	if n := secondary.count("activated"); n < 1 || n > 2 {
		t.Fatalf("secondary activations = %d, want 1 or 2", n)
	}

	if _, err := m.Activated(ctx, model.ActivatedEvent{Symbol: "XRP"}); err != nil {
		t.Fatal(err)
	}
	if primary.count("activated") != 4 {
		t.Fatal("primary must keep working after Close")
	}
}
