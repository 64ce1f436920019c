package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/K33P-repo/k33p-backend/internal/application/reconciler"
	"github.com/K33P-repo/k33p-backend/internal/application/verifier"
	"github.com/K33P-repo/k33p-backend/internal/infrastructure/database"
	"github.com/K33P-repo/k33p-backend/internal/infrastructure/ledger"
	"github.com/K33P-repo/k33p-backend/internal/repositories/depositrepo"
	"github.com/K33P-repo/k33p-backend/internal/server"
	"github.com/K33P-repo/k33p-backend/internal/server/websocket"
	"github.com/K33P-repo/k33p-backend/pkg/config"
	"github.com/K33P-repo/k33p-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithConfig(cfg.Logger)

	// Repository backend is selected once at startup: Postgres for real
	// deployments, in-memory for local development.
	var depositRepo depositrepo.IDepositRepository
	if cfg.Database.InMemory {
		log.Warn().Msg("Using in-memory deposit repository, records will not survive restarts")
		depositRepo = depositrepo.NewMemory()
	} else {
		db, err := database.New(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.ShutDown()
		depositRepo = depositrepo.New(db, log)
	}

	indexerClient := ledger.NewIndexerClient(cfg.Indexer, log)
	walletClient := ledger.NewWalletClient(cfg.Wallet, log)

	depositVerifier, err := verifier.New(indexerClient, cfg.Verification, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build deposit verifier")
	}

	wsHub := websocket.NewWsHub(log)
	go wsHub.Run()

	reconciliationService := reconciler.NewReconciliationService(
		depositRepo,
		depositVerifier,
		walletClient,
		wsHub,
		cfg.Verification,
		cfg.Security.CommitmentSalt,
		log,
	)

	if cfg.Verification.SweepInterval > 0 {
		go runSweepLoop(reconciliationService, cfg.Verification.SweepInterval, log)
	}

	srv := server.New(cfg, reconciliationService, log, wsHub)
	srv.Start()
}

func runSweepLoop(svc reconciler.IReconciliationService, interval time.Duration, log zerolog.Logger) {
	log.Info().Dur("interval", interval).Msg("Starting auto-verification sweep loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		svc.AutoVerifyAll(ctx)
		cancel()
	}
}
