package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"gtfs-occupancy/internal/config"
	"gtfs-occupancy/internal/db"
	"gtfs-occupancy/internal/dispatch"
	"gtfs-occupancy/internal/jobs"
	"gtfs-occupancy/internal/metrics"
	"gtfs-occupancy/internal/occupancy"
	"gtfs-occupancy/internal/pipeline"
	"gtfs-occupancy/internal/snapshot"
	"gtfs-occupancy/internal/staging"
)

func main() {
	// Load configuration from .env, CONFIG_FILE and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, cfg.SnapshotDatabase)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer sqlDB.Close()

	store, err := staging.New(cfg.StagingBackend, cfg.StagingDir, minioConfig(cfg))
	if err != nil {
		log.Fatalf("staging error: %v", err)
	}

	rdb, err := jobs.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis error: %v", err)
	}
	defer rdb.Close()

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector()
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var onStatus func(bool)
	if mcol != nil {
		onStatus = mcol.SetNATSConnected
	}
	nc, err := jobs.Connect(cfg.NATSURL, "gtfs-occupancy-simulator", onStatus)
	if err != nil {
		log.Fatalf("nats error: %v", err)
	}
	defer nc.Close()

	catalog := snapshot.NewPostgresCatalog(sqlDB, cfg.SnapshotSchema)
	stage := pipeline.NewStage(
		dispatch.NewResolver(store, cfg.StagingMaxReadBytes),
		occupancy.NewSimulator(cfg.SimWorkers, 0),
		snapshot.NewWriter(catalog, cfg.SnapshotPrefix, cfg.Location, snapshotMetrics(mcol)),
		cfg.ResultLimit,
		stageMetrics(mcol),
	)
	worker := jobs.NewWorker(nc, cfg.JobSubject, jobs.NewRedisStatusStore(rdb, cfg.RunStateTTL), stage.Handler(), runMetrics(mcol))
	if err := worker.Start(ctx); err != nil {
		log.Fatalf("worker start error: %v", err)
	}
	log.Printf("simulation worker ready on %s", cfg.JobSubject)

	// Block until context cancelled
	<-ctx.Done()
	worker.Stop(10 * time.Second)
	log.Println("shutdown complete")
}

func minioConfig(cfg *config.Config) staging.MinIOConfig {
	return staging.MinIOConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		UseSSL:    cfg.MinIOUseSSL,
	}
}

// The collector is optional; a typed nil must not leak into the interfaces.
func snapshotMetrics(c *metrics.Collector) snapshot.Metrics {
	if c == nil {
		return nil
	}
	return c
}

func stageMetrics(c *metrics.Collector) pipeline.Metrics {
	if c == nil {
		return nil
	}
	return c
}

func runMetrics(c *metrics.Collector) jobs.Metrics {
	if c == nil {
		return nil
	}
	return c
}
