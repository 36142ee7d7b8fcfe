package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"presentia/internal/attendance"
	attendanceHandler "presentia/internal/attendance/handler"
	attmetrics "presentia/internal/attendance/metrics"
	"presentia/internal/biometric"
	"presentia/internal/commitment"
	"presentia/internal/location"
	"presentia/internal/platform/config"
	"presentia/internal/platform/db"
	"presentia/internal/platform/httpserver"
	"presentia/internal/platform/logger"
	platformredis "presentia/internal/platform/redis"
	"presentia/internal/platform/ratelimit"
	"presentia/internal/proof"
	"presentia/internal/registry"
	"presentia/internal/registry/audit"
	regmetrics "presentia/internal/registry/metrics"
	regstore "presentia/internal/registry/store"
	httptransport "presentia/internal/transport/http"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal service packages.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when configured, in-memory otherwise.
	var (
		registrations regstore.RegistrationStore
		auditStore    audit.Store
		enrollments   attendance.EnrollmentStore
		health        func() error
	)
	if cfg.PostgresDSN != "" {
		conn, err := db.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := db.RunMigrations(ctx, conn); err != nil {
			return err
		}
		registrations = regstore.NewPostgres(conn)
		auditStore = audit.NewPostgresStore(conn)
		enrollments = attendance.NewPostgresStore(conn)
		health = conn.Ping
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		registrations = regstore.NewInMemory()
		auditStore = audit.NewInMemoryStore()
		enrollments = attendance.NewInMemoryStore()
	}

	if len(cfg.Audit.Brokers) > 0 {
		sink, err := audit.NewKafkaSink(auditStore, cfg.Audit.Brokers, cfg.Audit.Topic)
		if err != nil {
			return err
		}
		defer sink.Close()
		auditStore = sink
	}

	// Audit appends happen off the request path: the publisher enqueues and
	// a background worker drains into the configured sink.
	queued := audit.NewChannelStore(auditStore, 0)
	auditWorker := audit.NewWorker(auditStore, queued.Events(), log)
	go func() {
		if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()
	auditStore = queued

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	var lastSeen location.LastSeenStore = location.NewInMemoryLastSeen()
	var limitStore ratelimit.BucketStore = ratelimit.NewInMemoryStore()
	if redisClient != nil {
		defer redisClient.Close()
		lastSeen = location.NewRedisLastSeen(redisClient.Client, cfg.LastSeenTTL)
		limitStore = ratelimit.NewRedisStore(redisClient.Client)
	}
	limits := ratelimit.New(limitStore, log, ratelimit.WithMetrics(ratelimit.NewMetrics()))

	registrySvc, err := registry.NewService(
		registrations, audit.NewPublisher(auditStore), log,
		registry.WithMetrics(regmetrics.New()),
	)
	if err != nil {
		return err
	}

	commits, err := commitment.NewEngine(cfg.SaltSecret)
	if err != nil {
		return err
	}

	verifier, err := location.NewVerifier(cfg.Geofence, log)
	if err != nil {
		return err
	}
	spoof, err := location.NewSpoofDetector(lastSeen, cfg.VPNCIDRs, log)
	if err != nil {
		return err
	}

	var prover proof.Engine
	switch cfg.Proving {
	case proof.StrategyReal:
		prover, err = proof.NewRealEngine(cfg.ArtifactDir, cfg.MaxConcurrentProofs, log)
		if err != nil {
			return err
		}
	default:
		prover = proof.NewSimulationEngine(log)
	}

	orchestrator, err := attendance.NewService(
		registrySvc, enrollments, biometric.NewMockExtractor(), commits,
		verifier, spoof, prover, log,
		attendance.WithMetrics(attmetrics.New()),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Attendance: attendanceHandler.New(orchestrator, log, attendanceHandler.WithRateLimits(limits)),
		Logger:     log,
		Health:     health,
	})
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr, "proving", string(cfg.Proving))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
