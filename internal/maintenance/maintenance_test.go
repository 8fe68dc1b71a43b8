package maintenance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"MexcPulse/internal/cache"
	"MexcPulse/internal/engine"
	"MexcPulse/internal/metrics"
	"MexcPulse/internal/model"
)

type countingFlusher struct {
	n   int
	err error
}

func (f *countingFlusher) Flush() error {
	f.n++
	return f.err
}

type fixedStatus engine.Status

func (f fixedStatus) Status() engine.Status { return engine.Status(f) }

func TestRegisterAll(t *testing.T) {
	s := NewScheduler(context.Background(), nil, nil, fixedStatus{}, nil, zerolog.Nop())
	if err := s.RegisterAll("0 */5 * * * *", "", "0 * * * * *"); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	if got := len(s.Cron.Entries()); got != 2 {
		t.Fatalf("entries = %d, want 2", got)
	}
	if err := s.RegisterAll("not a spec", "", ""); err == nil {
		t.Fatal("expected error for bad spec")
	}
}

func TestPurgeCache(t *testing.T) {
	c := cache.NewMemoryCache(10 * time.Millisecond)
	c.Put(context.Background(), model.Snapshot{Symbol: "BTC"})
	time.Sleep(20 * time.Millisecond)

	s := NewScheduler(context.Background(), c, nil, fixedStatus{}, nil, zerolog.Nop())
	s.PurgeCache()
	if c.Len() != 0 {
		t.Fatalf("cache len = %d after purge", c.Len())
	}
}

func TestFlushStateAndHeartbeat(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	f := &countingFlusher{err: errors.New("disk full")}
	st := fixedStatus{Running: true, Mode: model.ModeNotification, Active: []string{"BTC", "SOL"}}
	s := NewScheduler(context.Background(), nil, f, st, rec, zerolog.Nop())

	s.FlushState()
	s.FlushState()
	if f.n != 2 {
		t.Fatalf("flushes = %d", f.n)
	}

	s.Heartbeat()
	expected := `
# HELP mexcpulse_engine_active_symbols Symbols currently tracked as active
# TYPE mexcpulse_engine_active_symbols gauge
mexcpulse_engine_active_symbols 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "mexcpulse_engine_active_symbols"); err != nil {
		t.Fatal(err)
	}
}
