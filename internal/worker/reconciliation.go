package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-orchestrator/internal/domain"
	"checkout-orchestrator/internal/infrastructure/backend"
	"checkout-orchestrator/internal/logger"
	"checkout-orchestrator/internal/metrics"
	"checkout-orchestrator/internal/repo"
)

var errNoOrder = errors.New("no order found for the payment")

// ReconciliationWorker settles finalizations whose order call never got a
// clear answer. It asks the order backend whether the order exists; it
// never sends a second order-creation request.
type ReconciliationWorker struct {
	journal  repo.FinalizationRepo
	lookup   backend.OrderLookup
	interval time.Duration
	after    time.Duration
	batch    int
	now      func() time.Time
}

// NewReconciliationWorker accepts a nil lookup: every stale finalization is
// then flagged for review.
func NewReconciliationWorker(
	journal repo.FinalizationRepo,
	lookup backend.OrderLookup,
	interval time.Duration,
	after time.Duration,
	batch int,
) *ReconciliationWorker {
	if batch <= 0 {
		batch = 50
	}
	return &ReconciliationWorker{
		journal:  journal,
		lookup:   lookup,
		interval: interval,
		after:    after,
		batch:    batch,
		now:      time.Now,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	logger.Info("reconciliation worker started", map[string]interface{}{
		"interval": rw.interval.String(),
		"after":    rw.after.String(),
	})

	for {
		select {
		case <-ctx.Done():
			logger.Info("reconciliation worker stopped", nil)
			return nil
		case <-ticker.C:
			if _, err := rw.ProcessOnce(ctx); err != nil {
				logger.Error(err, "reconciliation pass failed", nil)
			}
		}
	}
}

// Report summarises one reconciliation pass.
type Report struct {
	Scanned     int
	Confirmed   int
	NeedsReview int
	Skipped     int
}

// ProcessOnce runs a single pass over stale PENDING and UNCONFIRMED rows.
func (rw *ReconciliationWorker) ProcessOnce(ctx context.Context) (Report, error) {
	var report Report

	stale, err := rw.journal.FindUnsettledBefore(ctx, rw.now().Add(-rw.after), rw.batch)
	if err != nil {
		return report, fmt.Errorf("find unsettled finalizations: %w", err)
	}
	report.Scanned = len(stale)
	metrics.UnsettledFinalizations.Set(float64(len(stale)))
	if len(stale) == 0 {
		return report, nil
	}

	logger.Info("found unsettled finalizations", map[string]interface{}{"count": len(stale)})

	for i := range stale {
		f := &stale[i]
		status, err := rw.settle(ctx, f)
		if err != nil {
			report.Skipped++
			logger.Error(err, "could not settle finalization, retrying next pass", fields(f))
			continue
		}

		switch status {
		case domain.FinalizationConfirmed:
			report.Confirmed++
		case domain.FinalizationNeedsReview:
			report.NeedsReview++
		}
		metrics.ReconciledTotal.WithLabelValues(string(status)).Inc()
	}
	return report, nil
}

func (rw *ReconciliationWorker) settle(ctx context.Context, f *domain.Finalization) (domain.FinalizationStatus, error) {
	if rw.lookup != nil && f.ProviderID != nil {
		order, err := rw.lookup.FindOrderByPayment(ctx, *f.ProviderID)
		if err != nil {
			return "", fmt.Errorf("look up order by payment: %w", err)
		}
		if order != nil {
			f.Status = domain.FinalizationConfirmed
			f.OrderID = &order.ID
			f.UpdatedAt = rw.now()
			if err := rw.journal.UpdateFinalizationStatus(ctx, nil, f); err != nil {
				return "", err
			}
			logger.Info("order found for unconfirmed payment", fields(f))
			return f.Status, nil
		}
	}

	f.Status = domain.FinalizationNeedsReview
	f.UpdatedAt = rw.now()
	if err := rw.journal.UpdateFinalizationStatus(ctx, nil, f); err != nil {
		return "", err
	}

	if f.PaymentCaptured() {
		logger.Error(errNoOrder, "payment captured, order not confirmed: needs manual review", fields(f))
	} else {
		logger.Warn("order not confirmed: needs manual review", fields(f))
	}
	return f.Status, nil
}

func fields(f *domain.Finalization) map[string]interface{} {
	out := map[string]interface{}{
		"finalization_id": f.ID,
		"draft_id":        f.DraftID,
		"session_id":      f.SessionID,
		"method":          f.Method,
		"amount":          f.Amount.String(),
		"currency":        f.Currency,
		"status":          f.Status,
	}
	if f.ProviderID != nil {
		out["provider_id"] = *f.ProviderID
	}
	if f.OrderID != nil {
		out["order_id"] = *f.OrderID
	}
	return out
}
