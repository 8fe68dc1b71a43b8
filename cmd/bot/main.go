package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"MexcPulse/internal/bot"
	"MexcPulse/internal/cache"
	"MexcPulse/internal/collector"
	"MexcPulse/internal/config"
	"MexcPulse/internal/engine"
	"MexcPulse/internal/logger"
	"MexcPulse/internal/maintenance"
	"MexcPulse/internal/metrics"
	"MexcPulse/internal/notifier"
	"MexcPulse/internal/publisher"
	"MexcPulse/internal/ratelimit"
	"MexcPulse/internal/report"
	"MexcPulse/internal/server"
	"MexcPulse/internal/settings"
	"MexcPulse/internal/store"
	"MexcPulse/internal/watchlist"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mexc-pulse: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfgPath := config.DefaultPath
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	log, logCloser, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logCloser.Close()
	log.Info().Str("config", cfgPath).Msg("MexcPulse starting")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	// Persistence
	st, err := openStore(cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	thresholds, err := settings.NewStore(store.LoadThresholds(st, log))
	if err != nil {
		return fmt.Errorf("init thresholds: %w", err)
	}
	wl := watchlist.New(store.LoadSymbols(st, log))
	state := store.LoadBotState(st, log)
	log.Info().Int("symbols", wl.Len()).Int("sessions", state.SessionCount).Msg("state loaded")

	// Exchange
	limiter := ratelimit.NewLimiter(cfg.Exchange.RequestsPerSecond, cfg.Exchange.RequestsPerSecond)
	fetcher := collector.NewMEXCFetcher(cfg.Exchange.BaseURL, cfg.Proxy, cfg.Exchange.Timeout, limiter, rec, log)
	fetcher.MaxRetries = cfg.Exchange.MaxRetries
	col := collector.NewCollector(fetcher, rec, log)

	snapshots := openCache(cfg, log)
	defer snapshots.Close()

	// Outbound messages
	reportOpts := report.Options{MaxEntries: cfg.Engine.MaxDisplay, MaxChars: cfg.Engine.ReportCap}
	throttle := ratelimit.NewThrottle(cfg.Engine.MessageInterval)
	tg := notifier.NewTelegramClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, throttle, rec, log)
	var sink engine.Sink = notifier.NewTelegramSink(tg, cfg.Telegram.MinReportedDuration, reportOpts, log)
	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := publisher.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Warn().Err(err).Msg("kafka disabled")
		} else {
			defer ks.Close()
			ms := engine.NewMultiSink(sink, []engine.Sink{ks}, engine.DefaultSecondaryQueue, engine.DefaultSecondaryTimeout, log)
			defer ms.Close()
			sink = ms
			log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publishing enabled")
		}
	}

	opts := engine.DefaultOptions()
	opts.GraceDelay = cfg.Engine.GraceDelay
	opts.Report = reportOpts
	eng := engine.New(col, thresholds, wl, sink, snapshots, opts, rec, log)
	eng.Scheduler().MaxWorkers = cfg.Engine.MaxWorkers

	sessions := bot.NewSessions(st, state, log)
	b := bot.New(eng, st, sessions, log)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	maint := maintenance.NewScheduler(ctx, snapshots, sessions, eng, rec, log)
	if err := maint.RegisterAll(cfg.Maintenance.CachePurgeCron, cfg.Maintenance.StateFlushCron, cfg.Maintenance.HeartbeatCron); err != nil {
		return fmt.Errorf("register maintenance tasks: %w", err)
	}
	maint.Start()
	defer maint.Stop()

	srv := server.New(cfg.Server.Addr, eng, reg, log)
	srv.Start()

	// Start Telegram polling
	polling := make(chan struct{})
	go func() {
		defer close(polling)
		tg.StartPolling(ctx, b.HandleCommand)
	}()
	log.Info().Msg("telegram polling started")

	if cfg.Engine.ResumeLastMode && state.LastMode != "" {
		if err := b.Resume(state.LastMode); err != nil {
			log.Warn().Err(err).Str("mode", string(state.LastMode)).Msg("resume failed")
		}
	}

	log.Info().Msg("MexcPulse is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	cancel()
	<-polling

	if err := eng.Stop(); err != nil && !errors.Is(err, engine.ErrNotRunning) {
		log.Warn().Err(err).Msg("engine stop failed")
	}
	if err := sessions.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("save bot state failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("MexcPulse stopped")
	return nil
}

func openStore(cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.Store.Driver == "sqlite" {
		return store.NewSQLiteStore(cfg.Store.SQLitePath, log)
	}
	return store.NewJSONStore(cfg.Store.Dir)
}

func openCache(cfg *config.Config, log zerolog.Logger) cache.SnapshotCache {
	if cfg.Cache.Driver == "redis" {
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		}, cfg.Cache.TTL)
		if err == nil {
			log.Info().Str("addr", cfg.Cache.Redis.Addr).Msg("redis snapshot cache enabled")
			return rc
		}
		log.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
	}
	return cache.NewMemoryCache(cfg.Cache.TTL)
}
