/**
 * @description
 * Scheduled job implementations for the bank-service.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/transfa/bank-service/internal/domain"
)

const auditJobTimeout = 2 * time.Minute

// AuditRepository defines the database operations needed by the ledger audit.
type AuditRepository interface {
	FindNegativeBalanceAccounts(ctx context.Context) ([]domain.BankAccount, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo   AuditRepository
	logger *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo AuditRepository, logger *slog.Logger) *Jobs {
	return &Jobs{
		repo:   repo,
		logger: logger,
	}
}

// AuditLedger is the cron entrypoint for the ledger audit.
func (j *Jobs) AuditLedger() {
	ctx, cancel := context.WithTimeout(context.Background(), auditJobTimeout)
	defer cancel()

	if _, err := j.RunLedgerAudit(ctx); err != nil {
		j.logger.Error("ledger audit failed", "error", err)
	}
}

// RunLedgerAudit scans for accounts whose balance violates the non-negative
// invariant and reports each one. It returns the offending accounts.
func (j *Jobs) RunLedgerAudit(ctx context.Context) ([]domain.BankAccount, error) {
	j.logger.Info("starting ledger audit job")

	violations, err := j.repo.FindNegativeBalanceAccounts(ctx)
	if err != nil {
		return nil, err
	}

	if len(violations) == 0 {
		j.logger.Info("ledger audit job finished", "violations", 0)
		return violations, nil
	}

	for _, account := range violations {
		j.logger.Error("negative balance detected", "account_id", account.ID, "number", account.Number, "balance", account.Balance.StringFixed(domain.MoneyScale))
	}
	j.logger.Warn("ledger audit job finished", "violations", len(violations))
	return violations, nil
}
