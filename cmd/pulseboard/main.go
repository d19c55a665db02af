package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tsops/pulseboard/internal/aggregate"
	"github.com/tsops/pulseboard/internal/ai"
	"github.com/tsops/pulseboard/internal/clickup"
	"github.com/tsops/pulseboard/internal/config"
	"github.com/tsops/pulseboard/internal/dashboard"
	"github.com/tsops/pulseboard/internal/enrich"
	"github.com/tsops/pulseboard/internal/health"
	"github.com/tsops/pulseboard/internal/metrics"
	"github.com/tsops/pulseboard/internal/server"
	"github.com/tsops/pulseboard/internal/snapshot"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Dur("refresh_interval", cfg.RefreshInterval).
		Bool("ai_enabled", cfg.AIEnabled()).
		Bool("auth_enabled", cfg.AuthEnabled()).
		Msg("starting pulseboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	m := metrics.New()

	// Snapshot store (the persisted cache)
	store, err := snapshot.Open(cfg.SnapshotDBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open snapshot store")
	}
	defer store.Close()

	// ClickUp client
	cuClient := clickup.NewClient(cfg.ClickUpBaseURL, cfg.ClickUpToken, cfg.ClickUpTeamID,
		logger, clickup.WithMetrics(m))

	// Visibility rules
	rules, err := aggregate.LoadVisibilityRules(cfg.VisibilityRulesPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load visibility rules")
	}

	// Comment enrichment
	enricher := enrich.New(cuClient, logger)

	// AI summarizer (optional)
	var summarizer dashboard.Summarizer
	if cfg.AIEnabled() {
		var opts []ai.Option
		if cfg.AIModel != "" {
			opts = append(opts, ai.WithModel(cfg.AIModel))
		}
		summarizer = ai.NewSummarizer(cfg.AIAPIKey, logger, opts...)
		logger.Info().Msg("AI summarizer initialized")
	} else {
		logger.Info().Msg("AI not configured, skipping summarization")
	}

	// Refresher (cache-first orchestration)
	refresher := dashboard.New(dashboard.Deps{
		Source:     cuClient,
		Enricher:   enricher,
		Store:      store,
		Summarizer: summarizer,
		Metrics:    m,
		Logger:     logger,
	},
		dashboard.WithInterval(cfg.RefreshInterval),
		dashboard.WithRules(rules),
	)

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("snapshot", func(ctx context.Context) health.Status {
		if err := store.Ping(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})
	checker.Register("clickup", func(ctx context.Context) health.Status {
		if _, err := cuClient.Spaces(ctx); err != nil {
			return health.StatusDegraded
		}
		return health.StatusOK
	})

	// Ops server: health probes and metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.LivenessHandler())
	mux.HandleFunc("/readyz", checker.ReadinessHandler())
	mux.Handle("/metrics", m.Handler())
	opsServer := &http.Server{
		Addr:         cfg.OpsAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Dashboard API server
	apiServer := server.New(server.Config{
		ListenAddr:  cfg.ListenAddr,
		CORSOrigins: cfg.CORSOrigins,
		Auth: server.AuthConfig{
			AllowedEmails: cfg.AllowedEmailList(),
			SessionSecret: cfg.SessionSecret,
			SessionTTL:    cfg.SessionTTL,
		},
		RateLimit: server.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
	}, refresher, logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		refresher.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Str("addr", cfg.OpsAddr).Msg("ops server starting")
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("ops server error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("dashboard API server error")
		}
	}()

	<-sigCh
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = opsServer.Shutdown(shutdownCtx)
	_ = apiServer.Shutdown()

	wg.Wait()
	logger.Info().Msg("goodbye")
}
