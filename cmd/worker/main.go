// Package main runs the asynq worker that retries external anchoring for
// batches registered with a fallback reference. Deployments using the worker
// should run the Postgres store so it shares state with the API server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/naveenk2131/AgriTrust/internal/anchor"
	"github.com/naveenk2131/AgriTrust/internal/config"
	"github.com/naveenk2131/AgriTrust/internal/database"
	"github.com/naveenk2131/AgriTrust/internal/ledgerstore"
	"github.com/naveenk2131/AgriTrust/internal/registry"
	"github.com/naveenk2131/AgriTrust/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !cfg.QueueConfigured() {
		log.Fatalf("AGRITRUST_REDIS_ADDR is required for the worker")
	}

	var store ledgerstore.Store
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect database: %v", err)
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("ensure schema: %v", err)
		}
		store = ledgerstore.NewPostgresStore(pool)
	default:
		fileStore, err := ledgerstore.NewFileStore(cfg.DataFile)
		if err != nil {
			log.Fatalf("init store: %v", err)
		}
		store = fileStore
	}

	anchorClient := anchor.NewClient(cfg.LedgerRPCURL, cfg.LedgerContract, cfg.AnchorTimeout)
	service := registry.New(store, anchorClient)

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.ReanchorWorkers,
	})
	processor := worker.NewProcessor(service)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(mux); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
