package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/irevahq/payments/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	// Create extensions first
	if err := createExtensions(db); err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	// Create custom types BEFORE auto-migrate
	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	// Auto-migrate all models
	err := db.AutoMigrate(
		&model.Property{},
		&model.InvestmentHolding{},
		&model.CryptoTransaction{},
		&model.ProviderWebhookEvent{},
		&model.WorkflowRun{},
		&model.ROIDistribution{},
		&model.ROIAllocation{},
		&model.LedgerEntry{},
		&model.WalletBalance{},
		&model.Notification{},
		&model.AuditLog{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	// Create custom indexes and constraints
	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	// Create audit triggers on the financial tables
	if err := createAuditTriggers(db, logger); err != nil {
		logger.Error("Failed to create audit triggers", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates indexes GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// Ledger idempotency: one entry per reference id, enforced by the database
	// so a racing duplicate loses at the index, not just at the read check
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS unique_ledger_entry_reference ON wallet_ledger_entries (reference_id) WHERE reference_id IS NOT NULL`).Error; err != nil {
		return err
	}

	// Webhook retry scan
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_unprocessed ON provider_webhook_events (created_at) WHERE status IN ('pending', 'failed')`).Error; err != nil {
		return err
	}

	// Reconciliation scan over stuck pending transactions
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_crypto_transactions_stuck ON crypto_transactions (created_at) WHERE status = 'pending'`).Error; err != nil {
		return err
	}

	return nil
}

// createExtensions creates required PostgreSQL extensions
func createExtensions(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		return err
	}
	return nil
}

// createCustomTypes creates custom PostgreSQL enum types
func createCustomTypes(db *gorm.DB) error {
	enums := map[string]string{
		"crypto_transaction_status": `('pending', 'confirmed', 'failed', 'expired')`,
		"webhook_status":            `('pending', 'processing', 'completed', 'failed')`,
		"workflow_status":           `('running', 'completed', 'failed', 'canceled')`,
		"allocation_status":         `('pending', 'succeeded', 'failed')`,
		"ledger_entry_type":         `('roi_distribution', 'investment', 'deposit', 'refund', 'adjustment')`,
		"notification_type":         `('investment_confirmed', 'investment_failed', 'roi_received', 'payment_expired')`,
	}

	for name, values := range enums {
		var exists bool
		db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = ?)`, name).Scan(&exists)
		if !exists {
			if err := db.Exec(fmt.Sprintf(`CREATE TYPE %s AS ENUM %s`, name, values)).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

// createAuditTriggers installs an audit trigger on every table that carries
// financial state. Transaction and ledger rows are never hard-deleted, and
// this makes any mutation attributable after the fact.
func createAuditTriggers(db *gorm.DB, logger *zap.Logger) error {
	auditFunctionSQL := `
CREATE OR REPLACE FUNCTION audit_table_changes() RETURNS TRIGGER AS $$
DECLARE
    v_user_id UUID;
    v_record_id BIGINT;
BEGIN
    IF TG_OP = 'DELETE' THEN
        BEGIN
            EXECUTE format('SELECT ($1).user_id') INTO v_user_id USING OLD;
        EXCEPTION WHEN OTHERS THEN
            v_user_id := NULL;
        END;
        v_record_id := OLD.id;
    ELSE
        BEGIN
            EXECUTE format('SELECT ($1).user_id') INTO v_user_id USING NEW;
        EXCEPTION WHEN OTHERS THEN
            v_user_id := NULL;
        END;
        v_record_id := NEW.id;
    END IF;

    IF TG_OP = 'DELETE' THEN
        INSERT INTO audit_log (user_id, action, table_name, record_id, old_values, ip_address)
        VALUES (v_user_id, 'DELETE', TG_TABLE_NAME, v_record_id, to_jsonb(OLD), inet_client_addr());
        RETURN OLD;
    ELSIF TG_OP = 'UPDATE' THEN
        INSERT INTO audit_log (user_id, action, table_name, record_id, old_values, new_values, ip_address)
        VALUES (v_user_id, 'UPDATE', TG_TABLE_NAME, v_record_id, to_jsonb(OLD), to_jsonb(NEW), inet_client_addr());
        RETURN NEW;
    ELSIF TG_OP = 'INSERT' THEN
        INSERT INTO audit_log (user_id, action, table_name, record_id, new_values, ip_address)
        VALUES (v_user_id, 'INSERT', TG_TABLE_NAME, v_record_id, to_jsonb(NEW), inet_client_addr());
        RETURN NEW;
    END IF;
END;
$$ LANGUAGE plpgsql SECURITY DEFINER;`

	if err := db.Exec(auditFunctionSQL).Error; err != nil {
		return err
	}

	tables := []string{"crypto_transactions", "wallet_ledger_entries", "investment_holdings", "roi_distributions", "roi_allocations"}
	for _, table := range tables {
		dropSQL := fmt.Sprintf(`DROP TRIGGER IF EXISTS audit_%s ON %s;`, table, table)
		if err := db.Exec(dropSQL).Error; err != nil {
			logger.Warn("Failed to drop existing trigger", zap.String("table", table), zap.Error(err))
		}

		triggerSQL := fmt.Sprintf(`
CREATE TRIGGER audit_%s
    AFTER INSERT OR UPDATE OR DELETE ON %s
    FOR EACH ROW EXECUTE FUNCTION audit_table_changes();`, table, table)
		if err := db.Exec(triggerSQL).Error; err != nil {
			return err
		}
	}

	return nil
}
