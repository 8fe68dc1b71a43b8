package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"MexcPulse/internal/cache"
	"MexcPulse/internal/model"
	"MexcPulse/internal/report"
	"MexcPulse/internal/scheduler"
	"MexcPulse/internal/settings"
	"MexcPulse/internal/tracker"
)

// runHandler is a scheduler.Handler bound to one run of one mode.
type runHandler interface {
	scheduler.Handler
	// begin runs before the first cycle.
	begin(ctx context.Context)
	// finish runs after the scheduler returned and releases outward messages.
	finish(ctx context.Context)
}

type notificationHandler struct {
	tracker *tracker.Tracker
	sink    Sink
	cache   cache.SnapshotCache
	log     zerolog.Logger
}

func (h *notificationHandler) begin(context.Context) {}

func (h *notificationHandler) HandleResult(ctx context.Context, r scheduler.Result, th settings.Thresholds) {
	if ctx.Err() != nil {
		return
	}
	if r.Err != nil {
		h.tracker.Miss(ctx, r.Symbol, th.InactivityTimeout)
		return
	}
	remember(ctx, h.cache, h.log, r.Snapshot)
	h.tracker.Observe(ctx, r.Snapshot, th.InactivityTimeout)
}

func (h *notificationHandler) BatchDone(context.Context, []string, settings.Thresholds) {}

func (h *notificationHandler) CycleDone(ctx context.Context, th settings.Thresholds) {
	if ctx.Err() != nil {
		return
	}
	h.tracker.Sweep(ctx, th.InactivityTimeout)
}

func (h *notificationHandler) Idle(ctx context.Context, th settings.Thresholds) {
	if ctx.Err() != nil {
		return
	}
	h.tracker.Sweep(ctx, th.InactivityTimeout)
}

func (h *notificationHandler) finish(ctx context.Context) {
	dropped := h.tracker.Reset()
	for _, rec := range dropped {
		if rec.Handle == 0 {
			continue
		}
		if err := h.sink.Release(ctx, rec.Handle); err != nil {
			h.log.Warn().Str("symbol", rec.Symbol).Err(err).Msg("release notification failed")
		}
	}
	if len(dropped) > 0 {
		h.log.Info().Int("count", len(dropped)).Msg("released active notifications")
	}
}

type monitoringHandler struct {
	sink      Sink
	cache     cache.SnapshotCache
	opts      report.Options
	watchlist func() int
	log       zerolog.Logger
	now       func() time.Time

	handle  model.Handle
	results []model.Snapshot
	failed  []string
	stale   map[string]model.Snapshot
}

func (h *monitoringHandler) begin(ctx context.Context) {
	h.emit(ctx, report.Starting(h.watchlist()))
}

func (h *monitoringHandler) HandleResult(ctx context.Context, r scheduler.Result, _ settings.Thresholds) {
	if r.Err != nil {
		h.failed = append(h.failed, r.Symbol)
		if h.cache != nil {
			if snap, err := h.cache.Get(ctx, r.Symbol); err == nil {
				if h.stale == nil {
					h.stale = make(map[string]model.Snapshot)
				}
				h.stale[r.Symbol] = snap
			}
		}
		return
	}
	remember(ctx, h.cache, h.log, r.Snapshot)
	h.results = append(h.results, r.Snapshot)
}

func (h *monitoringHandler) BatchDone(context.Context, []string, settings.Thresholds) {}

func (h *monitoringHandler) CycleDone(ctx context.Context, th settings.Thresholds) {
	payload := report.Build(report.Input{
		Snapshots:  h.results,
		Failed:     h.failed,
		Stale:      h.stale,
		Thresholds: th,
		At:         h.now(),
	}, h.opts)
	h.results, h.failed, h.stale = nil, nil, nil
	if ctx.Err() != nil {
		return
	}
	h.emit(ctx, payload)
}

func (h *monitoringHandler) Idle(ctx context.Context, _ settings.Thresholds) {
	if ctx.Err() != nil {
		return
	}
	h.emit(ctx, report.EmptyWatchlist(h.now()))
}

func (h *monitoringHandler) emit(ctx context.Context, payload string) {
	ev := model.ReportReady{Payload: payload, IsUpdate: h.handle != 0}
	nh, err := h.sink.Report(ctx, h.handle, ev)
	if err != nil {
		h.log.Warn().Err(err).Bool("update", ev.IsUpdate).Msg("emit report failed")
		return
	}
	if nh != 0 {
		h.handle = nh
	}
}

func (h *monitoringHandler) finish(ctx context.Context) {
	if h.handle == 0 {
		return
	}
	if err := h.sink.Release(ctx, h.handle); err != nil {
		h.log.Warn().Err(err).Msg("release report failed")
	}
	h.handle = 0
}

func remember(ctx context.Context, c cache.SnapshotCache, log zerolog.Logger, snap model.Snapshot) {
	if c == nil {
		return
	}
	if err := c.Put(ctx, snap); err != nil {
		log.Debug().Str("symbol", snap.Symbol).Err(err).Msg("cache put failed")
	}
}
