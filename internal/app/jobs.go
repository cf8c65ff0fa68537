/**
 * @description
 * Scheduled job implementations for walletd.
 */
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/transfa/wallet-desk/internal/domain"
	"github.com/transfa/wallet-desk/internal/store"
	"github.com/transfa/wallet-desk/pkg/rabbitmq"
)

const (
	ledgerDriftBatchSize = 100
	ledgerDriftTimeout   = 30 * time.Second
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo      store.Repository
	publisher rabbitmq.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo store.Repository, publisher rabbitmq.Publisher, logger *zap.Logger) *Jobs {
	if publisher == nil {
		publisher = &rabbitmq.EventProducerFallback{Logger: logger}
	}
	return &Jobs{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With(zap.String("component", "jobs")),
		now:       time.Now,
	}
}

// ReconcileLedger reports wallets whose balance disagrees with their latest
// ledger entry. It never rewrites balances.
func (j *Jobs) ReconcileLedger() {
	j.logger.Info("starting ledger reconciliation job")
	ctx, cancel := context.WithTimeout(context.Background(), ledgerDriftTimeout)
	defer cancel()

	drifts, err := j.repo.FindLedgerDrift(ctx, ledgerDriftBatchSize)
	if err != nil {
		j.logger.Error("failed to load ledger drift", zap.Error(err))
		return
	}
	if len(drifts) == 0 {
		j.logger.Info("ledger reconciliation finished", zap.Int("drifted_wallets", 0))
		return
	}

	for _, drift := range drifts {
		j.logger.Warn("ledger drift detected",
			zap.Int64("wallet_id", drift.WalletID),
			zap.Int64("contact_id", drift.ContactID),
			zap.String("balance", drift.Balance.String()),
			zap.String("balance_after", drift.BalanceAfter.String()),
			zap.String("difference", drift.Difference().String()),
		)
		event := rabbitmq.WalletEvent{
			Type:         domain.EventTypeLedgerDrift,
			ContactID:    drift.ContactID,
			WalletID:     drift.WalletID,
			Amount:       drift.Difference(),
			BalanceAfter: drift.Balance,
			OccurredAt:   j.now().UTC(),
		}
		if err := j.publisher.PublishWalletEvent(ctx, rabbitmq.RoutingKeyLedgerDrift, event); err != nil {
			j.logger.Error("failed to publish ledger drift", zap.Int64("wallet_id", drift.WalletID), zap.Error(err))
		}
	}
	j.logger.Info("ledger reconciliation finished", zap.Int("drifted_wallets", len(drifts)))
}
