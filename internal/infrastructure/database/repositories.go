package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/irevahq/payments/internal/adapter/repository"
	domainRepo "github.com/irevahq/payments/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Transaction  domainRepo.TransactionRepository
	Wallet       domainRepo.WalletRepository
	Holding      domainRepo.HoldingRepository
	WorkflowRun  domainRepo.WorkflowRunRepository
	Distribution domainRepo.DistributionRepository
	Notification domainRepo.NotificationRepository
	Webhook      domainRepo.WebhookRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Transaction:  repository.NewTransactionRepository(db, logger),
		Wallet:       repository.NewWalletRepository(db, logger),
		Holding:      repository.NewHoldingRepository(db, logger),
		WorkflowRun:  repository.NewWorkflowRunRepository(db, logger),
		Distribution: repository.NewDistributionRepository(db, logger),
		Notification: repository.NewNotificationRepository(db, logger),
		Webhook:      repository.NewWebhookRepository(db, logger),
	}
}
