package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/irevahq/payments/internal/config"
	"github.com/irevahq/payments/internal/domain/model"
	"github.com/irevahq/payments/internal/infrastructure/database"
	httpServer "github.com/irevahq/payments/internal/infrastructure/http"
	"github.com/irevahq/payments/internal/infrastructure/provider/coingate"
	"github.com/irevahq/payments/internal/usecase"
	"github.com/irevahq/payments/internal/workflow"
)

func main() {
	// Load configuration (fails fast on a half-configured service)
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, logger); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, logger)

	// Initialize payment provider
	provider := coingate.NewCoinGateProvider(
		cfg.Crypto.APIKey,
		cfg.Crypto.WebhookSecret,
		cfg.Crypto.BaseURL,
		logger,
	)

	// Workflow engine selection is explicit configuration; Validate already
	// rejected anything but a supported engine.
	engine := workflow.NewEngine(repos.WorkflowRun, retryPolicy(cfg), logger)

	investmentWF := workflow.NewInvestmentWorkflow(
		repos.Transaction, repos.Holding, repos.Wallet, repos.Notification, logger)
	roiWF := workflow.NewROIDistributionWorkflow(
		repos.Holding, repos.Wallet, repos.Distribution, repos.Notification, logger)

	engine.Register(model.WorkflowKindInvestment, investmentWF.Run)
	engine.Register(model.WorkflowKindROIDistribution, roiWF.Run)

	// Resume runs interrupted by the previous shutdown
	if err := engine.Resume(context.Background()); err != nil {
		logger.Fatal("Failed to resume workflows", zap.Error(err))
	}

	// Initialize usecases
	paymentService := usecase.NewPaymentService(
		provider, repos.Transaction, repos.Webhook, engine, logger)
	investmentService := usecase.NewInvestmentService(
		provider, repos.Transaction, repos.Holding, engine, cfg.Crypto.CallbackURL, logger)

	// Reconciliation poller
	var reconciler *usecase.Reconciler
	if cfg.Reconciliation.Enabled {
		reconciler = usecase.NewReconciler(
			provider, repos.Transaction, paymentService,
			cfg.Reconciliation.Schedule,
			cfg.Reconciliation.PendingAfter,
			cfg.Reconciliation.BatchSize,
			logger,
		)
		if err := reconciler.Start(); err != nil {
			logger.Fatal("Failed to start reconciliation poller", zap.Error(err))
		}
	}

	// Initialize HTTP server
	httpSrv := httpServer.NewServer(cfg, logger, repos, &httpServer.Services{
		Payments:    paymentService,
		Investments: investmentService,
	})

	go func() {
		if err := httpSrv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	if reconciler != nil {
		reconciler.Stop()
	}

	// Interrupted workflow runs stay durable and resume at the next boot
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Workflow engine shutdown timed out", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Service.Environment == "development" {
		return zap.NewDevelopment()
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Log.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
		}
		zapCfg.Level = level
	}
	return zapCfg.Build()
}

func retryPolicy(cfg *config.Config) workflow.RetryPolicy {
	policy := workflow.DefaultRetryPolicy()
	if cfg.Workflow.RetryInitialInterval > 0 {
		policy.InitialInterval = cfg.Workflow.RetryInitialInterval
	}
	if cfg.Workflow.RetryMaxInterval > 0 {
		policy.MaxInterval = cfg.Workflow.RetryMaxInterval
	}
	if cfg.Workflow.RetryMaxAttempts > 0 {
		policy.MaxAttempts = cfg.Workflow.RetryMaxAttempts
	}
	return policy
}
