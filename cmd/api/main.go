package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"gtfs-occupancy/internal/api"
	"gtfs-occupancy/internal/config"
	"gtfs-occupancy/internal/db"
	"gtfs-occupancy/internal/metrics"
	"gtfs-occupancy/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, cfg.SnapshotDatabase)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer sqlDB.Close()

	var sm snapshot.Metrics
	if cfg.MetricsAddr != "" {
		mcol := metrics.NewCollector()
		sm = mcol
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	catalog := snapshot.NewPostgresCatalog(sqlDB, cfg.SnapshotSchema)
	app := api.NewServer(snapshot.NewSearcher(catalog, cfg.SnapshotPrefix, cfg.SearchLimit, sm), catalog).App()

	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("search API listening on %s", cfg.HTTPAddr)
	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("listen error: %v", err)
	}
}
