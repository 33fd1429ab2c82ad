package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openvenue/admission/internal/app"
	"github.com/openvenue/admission/internal/clock"
	"github.com/openvenue/admission/internal/config"
	"github.com/openvenue/admission/internal/counter"
	"github.com/openvenue/admission/internal/storage/postgres"
	transporthttp "github.com/openvenue/admission/internal/transport/http"
	"github.com/openvenue/admission/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Load configuration")
	}
	setupLogging(cfg.LogLevel)

	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatal().Err(err).Msg("Database ping failed")
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatal().Err(err).Msg("Apply migrations")
	}

	clk := clock.NewSystem()
	policyRepo := postgres.NewPolicyRepository(pool)

	seats, err := buildCounter(startupCtx, cfg.CounterBackend, pool, policyRepo)
	if err != nil {
		log.Fatal().Err(err).Msg("Build seat counter")
	}

	registrationRepo := postgres.NewRegistrationRepository(pool)
	waitlistRepo := postgres.NewWaitlistRepository(pool)
	groupRepo := postgres.NewGroupRepository(pool)
	analyticsRepo := postgres.NewAnalyticsRepository(pool)

	notifier := app.NewPromotionNotifier()
	analyticsSvc := app.NewAnalyticsService(analyticsRepo, policyRepo, clk, cfg.AnalyticsCacheTTL)
	policySvc := app.NewPolicyService(policyRepo, seats, clk)
	registrationSvc := app.NewRegistrationService(registrationRepo, policyRepo, seats, clk, notifier, analyticsSvc)
	waitlistSvc := app.NewWaitlistService(waitlistRepo, clk, analyticsSvc)
	groupSvc := app.NewGroupService(groupRepo, policyRepo, seats, clk, notifier, analyticsSvc)

	engine := app.NewPromotionEngine(notifier, registrationSvc, waitlistRepo, policyRepo, seats, cfg.PromotionInterval)
	engine.Start()
	defer engine.Stop()

	sweeper := app.NewSweeper(registrationSvc, cfg.ReservationSweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	handler := transporthttp.NewRouter(transporthttp.Services{
		Policies:      policySvc,
		Registrations: registrationSvc,
		Waitlist:      waitlistSvc,
		Groups:        groupSvc,
		Analytics:     analyticsSvc,
	}, cfg.CORSOrigins)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	log.Info().Str("port", cfg.Port).Msg("Admission API listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server error")
		}
	case <-stopCtx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}

// buildCounter wires the configured seat counter backend. Either way the
// durable counters are reconciled from the ledger first, so a crash
// mid-release cannot leak seats; the memory backend is then seeded from the
// reconciled state.
func buildCounter(ctx context.Context, backend string, pool *pgxpool.Pool, policies *postgres.PolicyRepository) (counter.Counter, error) {
	durable := postgres.NewSeatCounter(pool)
	if err := durable.ReconcileAll(ctx); err != nil {
		return nil, fmt.Errorf("reconcile seat counters: %w", err)
	}

	switch backend {
	case "postgres":
		return durable, nil
	case "memory":
		mem := counter.NewMemory(policies)
		snapshot, err := durable.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		for eventID, committed := range snapshot {
			if committed == 0 {
				continue
			}
			if err := mem.TryReserve(ctx, eventID, committed); err != nil {
				return nil, fmt.Errorf("seed counter for %s: %w", eventID, err)
			}
		}
		return mem, nil
	default:
		return nil, fmt.Errorf("unknown counter backend %q", backend)
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(os.Stderr)
}
