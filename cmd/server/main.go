// Package main is the entry point for the AgriTrust API server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/naveenk2131/AgriTrust/internal/anchor"
	"github.com/naveenk2131/AgriTrust/internal/api"
	"github.com/naveenk2131/AgriTrust/internal/config"
	"github.com/naveenk2131/AgriTrust/internal/database"
	"github.com/naveenk2131/AgriTrust/internal/insight"
	"github.com/naveenk2131/AgriTrust/internal/ledgerstore"
	"github.com/naveenk2131/AgriTrust/internal/queue"
	"github.com/naveenk2131/AgriTrust/internal/reanchor"
	"github.com/naveenk2131/AgriTrust/internal/registry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("init store: %v", err)
	}
	defer cleanup()

	anchorClient := anchor.NewClient(cfg.LedgerRPCURL, cfg.LedgerContract, cfg.AnchorTimeout)
	if anchorClient.Configured() {
		log.Printf("anchoring enabled against %s", cfg.LedgerRPCURL)
	} else {
		log.Printf("ledger gateway not configured, anchoring will use local fallback references")
	}

	service := registry.New(store, anchorClient)

	// Re-anchoring runs through asynq when Redis is available, otherwise
	// through an in-process pool. Without a configured gateway there is
	// nothing to retry against, so neither is wired.
	if anchorClient.Configured() {
		if cfg.QueueConfigured() {
			client := asynq.NewClient(asynq.RedisClientOpt{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			defer client.Close()
			service.SetScheduler(queue.NewScheduler(client))
		} else {
			pool := reanchor.New(service.Reanchor, cfg.ReanchorWorkers)
			pool.Start(ctx)
			service.SetScheduler(pool)
		}
	}

	srv := api.New(cfg, service, insight.NewGenerator(time.Now().UnixNano()))
	if err := srv.Run(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}

// buildStore selects the Record Store backend from configuration.
func buildStore(ctx context.Context, cfg *config.Config) (ledgerstore.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return ledgerstore.NewPostgresStore(pool), pool.Close, nil
	default:
		store, err := ledgerstore.NewFileStore(cfg.DataFile)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}
