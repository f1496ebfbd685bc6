package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
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
	route := flag.String("linha", "", "route substring to keep in the snapshot (empty keeps all)")
	local := flag.Bool("local", false, "run the simulation in-process instead of through NATS")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := staging.New(cfg.StagingBackend, cfg.StagingDir, staging.MinIOConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		UseSSL:    cfg.MinIOUseSSL,
	})
	if err != nil {
		log.Fatalf("staging error: %v", err)
	}

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

	runner, closeRunner, err := newRunner(ctx, cfg, store, *local)
	if err != nil {
		log.Fatalf("runner error: %v", err)
	}
	defer closeRunner()

	trig := pipeline.NewTrigger(
		dispatch.NewDispatcher(store, cfg.StagingPath, cfg.InlineMaxBytes, mcol.DispatchMetrics()),
		runner,
		pipeline.TriggerOptions{
			GTFSDir:     cfg.GTFSDir,
			Capacity:    cfg.VehicleCapacity,
			RecordLimit: cfg.RecordLimit,
			RouteFilter: *route,
			Poll:        jobs.PollOptions{Interval: cfg.PollInterval, Timeout: cfg.RunTimeout},
		},
	)
	res, err := trig.Run(ctx)
	if err != nil {
		var jerr *jobs.JobExecutionError
		if errors.As(err, &jerr) {
			log.Printf("run %s failed: %s", jerr.RunID, jerr.Message)
		}
		log.Fatalf("trigger error: %v", err)
	}
	log.Printf("run %s finished: %s", res.RunID, res.State)
	fmt.Fprintln(os.Stdout, res.Output)
}

// newRunner returns the NATS runner backed by Redis state, or with local set
// an in-process runner writing straight to the snapshot database.
func newRunner(ctx context.Context, cfg *config.Config, store staging.Store, local bool) (jobs.Runner, func(), error) {
	if local {
		if err := cfg.RequireDatabase(); err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, cfg.SnapshotDatabase)
		if err != nil {
			return nil, nil, err
		}
		catalog := snapshot.NewPostgresCatalog(sqlDB, cfg.SnapshotSchema)
		stage := pipeline.NewStage(
			dispatch.NewResolver(store, cfg.StagingMaxReadBytes),
			occupancy.NewSimulator(cfg.SimWorkers, 0),
			snapshot.NewWriter(catalog, cfg.SnapshotPrefix, cfg.Location, nil),
			cfg.ResultLimit, nil,
		)
		r := jobs.NewLocalRunner(ctx, jobs.NewMemoryStatusStore(), stage.Handler(), nil)
		return r, func() { r.Wait(); sqlDB.Close() }, nil
	}

	rdb, err := jobs.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	nc, err := jobs.Connect(cfg.NATSURL, "gtfs-occupancy-trigger", nil)
	if err != nil {
		rdb.Close()
		return nil, nil, err
	}
	r := jobs.NewNATSRunner(nc, cfg.JobSubject, jobs.NewRedisStatusStore(rdb, cfg.RunStateTTL))
	return r, func() { nc.Close(); rdb.Close() }, nil
}
