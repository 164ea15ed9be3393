package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gigchain/backend/internal/config"
	"github.com/gigchain/backend/internal/db"
	"github.com/gigchain/backend/internal/events"
	"github.com/gigchain/backend/internal/repositories"
	"github.com/gigchain/backend/internal/services"
	"github.com/gigchain/backend/internal/sweeper"
	"github.com/gigchain/backend/internal/ton"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const nonceRetention = 24 * time.Hour

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	chain, err := ton.Dial(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to TON", zap.Error(err))
	}
	custodian, err := ton.NewCustodian(chain, cfg.EscrowWalletSeed, log)
	if err != nil {
		log.Fatal("failed to init custodian wallet", zap.Error(err))
	}

	// Repos
	orderRepo := repositories.NewOrderRepo(pool)
	ledgerRepo := repositories.NewLedgerRepo(pool)
	userRepo := repositories.NewUserRepo(pool)
	proofRepo := repositories.NewProofRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	settlementService := services.NewSettlementService(orderRepo, ledgerRepo, userRepo, custodian, publisher, cfg, log)
	sw := sweeper.New(orderRepo, ledgerRepo, userRepo, settlementService, chain, custodian, cfg, log)

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		log.Info("metrics server listening", zap.String("port", cfg.WorkerPort))
		if err := http.ListenAndServe(":"+cfg.WorkerPort, mux); err != nil {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()

	log.Info("worker started",
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Duration("reconcile_interval", cfg.ReconcileInterval),
	)

	sweepTicker := time.NewTicker(cfg.SweepInterval)
	reconcileTicker := time.NewTicker(cfg.ReconcileInterval)
	pruneTicker := time.NewTicker(1 * time.Hour)
	defer sweepTicker.Stop()
	defer reconcileTicker.Stop()
	defer pruneTicker.Stop()

	// Repair any claim left hanging by a previous crash before the first
	// sweep runs.
	runReconcile(ctx, sw, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			runSweep(ctx, sw, log)
		case <-reconcileTicker.C:
			runReconcile(ctx, sw, log)
		case <-pruneTicker.C:
			runPrune(ctx, proofRepo, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runSweep(ctx context.Context, sw *sweeper.Sweeper, log *zap.Logger) {
	report, err := sw.SweepOverdueDeliveries(ctx)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if report != nil {
			fields = append(fields, zap.Int("settled", len(report.Settled)), zap.Int("failed", len(report.Failed)))
		}
		log.Error("overdue sweep failed", fields...)
		return
	}
	if len(report.Settled) > 0 || len(report.Failed) > 0 {
		log.Info("overdue sweep done",
			zap.Int("settled", len(report.Settled)),
			zap.Int("failed", len(report.Failed)),
		)
	}
}

func runReconcile(ctx context.Context, sw *sweeper.Sweeper, log *zap.Logger) {
	if err := sw.Reconcile(ctx); err != nil {
		log.Error("reconcile failed", zap.Error(err))
	}
}

func runPrune(ctx context.Context, proofRepo *repositories.ProofRepo, log *zap.Logger) {
	n, err := proofRepo.DeleteExpired(ctx, nonceRetention)
	if err != nil {
		log.Error("nonce prune failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("expired nonces pruned", zap.Int64("count", n))
	}
}
