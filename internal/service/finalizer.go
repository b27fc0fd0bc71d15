package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"checkout-orchestrator/internal/apperr"
	"checkout-orchestrator/internal/domain"
	"checkout-orchestrator/internal/infrastructure/backend"
	"checkout-orchestrator/internal/logger"
	"checkout-orchestrator/internal/metrics"
	"checkout-orchestrator/internal/repo"
)

var errEmptyOrder = errors.New("order api returned no order")

type FinalizeInput struct {
	SessionID string
	Buyer     domain.Buyer
	Draft     *domain.OrderDraft
	Attempt   domain.PaymentAttempt
	Token     domain.ConfirmationToken
}

// Finalizer sends the single order-creation request for a confirmed
// payment. Every call is journaled so a lost answer can be reconciled;
// the call itself is never retried here.
type Finalizer struct {
	orders  backend.OrderAPI
	journal repo.FinalizationRepo
	timeout time.Duration
	now     func() time.Time
}

func NewFinalizer(orders backend.OrderAPI, journal repo.FinalizationRepo, timeout time.Duration) *Finalizer {
	return &Finalizer{
		orders:  orders,
		journal: journal,
		timeout: timeout,
		now:     time.Now,
	}
}

func (f *Finalizer) Finalize(ctx context.Context, in FinalizeInput) (*domain.Order, error) {
	if !in.Token.Succeeded() {
		return nil, apperr.ErrTokenNotSucceeded
	}
	if in.Draft == nil {
		return nil, apperr.ErrMissingDraft
	}

	// The payment is already confirmed, so nothing below is abandoned with
	// the request. The order call is bounded by the timeout alone.
	ctx = context.WithoutCancel(ctx)

	fields := map[string]interface{}{
		"session_id":  in.SessionID,
		"attempt_id":  in.Attempt.ID,
		"draft_id":    in.Draft.ID,
		"method":      in.Token.Method,
		"provider_id": in.Token.ProviderRef(),
	}

	now := f.now()
	rec := &domain.Finalization{
		ID:         uuid.New(),
		DraftID:    in.Draft.ID,
		AttemptID:  in.Attempt.ID,
		SessionID:  in.SessionID,
		BuyerID:    in.Buyer.ID,
		Method:     in.Token.Method,
		ProviderID: in.Token.ProviderID,
		Amount:     in.Draft.TotalPrice,
		Currency:   in.Draft.Currency,
		Status:     domain.FinalizationPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if order := f.alreadyConfirmed(ctx, rec, fields); order != nil {
		return order, nil
	}

	journaled := true
	if err := f.journal.CreateFinalization(ctx, nil, rec); err != nil {
		journaled = false
		logger.Error(err, "finalization journal write failed", fields)
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	order, err := f.orders.CreateOrder(callCtx, buildOrderRequest(in))
	cancel()
	if err == nil && order == nil {
		err = errEmptyOrder
	}

	if err != nil {
		rec.Status = domain.FinalizationUnconfirmed
		rec.LastError = err.Error()
		rec.UpdatedAt = f.now()
		if journaled {
			f.update(ctx, rec, fields)
		}
		metrics.FinalizationsTotal.WithLabelValues(string(rec.Method), string(rec.Status)).Inc()

		fields["finalization_id"] = rec.ID
		if rec.PaymentCaptured() {
			logger.Error(err, "payment captured, order not confirmed", fields)
		} else {
			logger.Error(err, "order not confirmed", fields)
		}

		return nil, &apperr.FinalizationError{
			Method:          string(in.Token.Method),
			ProviderID:      in.Token.ProviderRef(),
			PaymentCaptured: rec.PaymentCaptured(),
			Err:             err,
		}
	}

	rec.Status = domain.FinalizationConfirmed
	rec.OrderID = &order.ID
	rec.UpdatedAt = f.now()
	if journaled {
		f.update(ctx, rec, fields)
	}
	metrics.FinalizationsTotal.WithLabelValues(string(rec.Method), string(rec.Status)).Inc()

	fields["order_id"] = order.ID
	logger.Info("order created", fields)
	return order, nil
}

// Check looks up the journal before a new attempt contacts a provider. It
// returns the recorded order when the draft was already finalized, and
// apperr.ErrUnsettledPayment while an earlier order call is unresolved.
// Journal lookups that fail are logged and do not block the attempt.
func (f *Finalizer) Check(ctx context.Context, draftID uuid.UUID) (*domain.Order, error) {
	fields := map[string]interface{}{"draft_id": draftID}

	prior, err := f.journal.FindConfirmedByDraft(ctx, draftID)
	if err != nil {
		logger.Warn("finalization journal lookup failed", withErr(fields, err))
		return nil, nil
	}
	if prior != nil && prior.OrderID != nil {
		return recordedOrder(prior), nil
	}

	open, err := f.journal.FindUnsettledByDraft(ctx, draftID)
	if err != nil {
		logger.Warn("finalization journal lookup failed", withErr(fields, err))
		return nil, nil
	}
	if open != nil {
		fields["finalization_id"] = open.ID
		fields["status"] = open.Status
		logger.Warn("earlier finalization still unsettled", fields)
		return nil, apperr.ErrUnsettledPayment
	}
	return nil, nil
}

// alreadyConfirmed returns the recorded order when this draft was finalized
// before, so a replayed confirmation never produces a second order. A
// captured payment arriving for such a draft is journaled for review.
func (f *Finalizer) alreadyConfirmed(ctx context.Context, rec *domain.Finalization, fields map[string]interface{}) *domain.Order {
	prior, err := f.journal.FindConfirmedByDraft(ctx, rec.DraftID)
	if err != nil {
		logger.Warn("finalization journal lookup failed", withErr(fields, err))
		return nil
	}
	if prior == nil || prior.OrderID == nil {
		return nil
	}

	fields["order_id"] = *prior.OrderID
	if !rec.PaymentCaptured() {
		logger.Warn("draft already finalized, returning recorded order", fields)
		return recordedOrder(prior)
	}

	rec.Status = domain.FinalizationNeedsReview
	rec.LastError = "payment confirmed for a draft already finalized as order " + *prior.OrderID
	if err := f.journal.CreateFinalization(ctx, nil, rec); err != nil {
		logger.Error(err, "finalization journal write failed", fields)
	}
	metrics.FinalizationsTotal.WithLabelValues(string(rec.Method), string(rec.Status)).Inc()

	fields["finalization_id"] = rec.ID
	logger.Error(errors.New(rec.LastError), "second payment captured for a finalized draft", fields)
	return recordedOrder(prior)
}

func recordedOrder(prior *domain.Finalization) *domain.Order {
	return &domain.Order{
		ID:         *prior.OrderID,
		Status:     domain.OrderProcessing,
		TotalPrice: prior.Amount,
		PaymentInfo: domain.PaymentInfo{
			ID:     derefOr(prior.ProviderID, ""),
			Status: domain.ConfirmationSucceeded,
			Type:   prior.Method.PaymentType(),
		},
		CreatedAt: prior.UpdatedAt,
	}
}

func (f *Finalizer) update(ctx context.Context, rec *domain.Finalization, fields map[string]interface{}) {
	if err := f.journal.UpdateFinalizationStatus(ctx, nil, rec); err != nil {
		logger.Error(err, "finalization journal update failed", fields)
	}
}

func buildOrderRequest(in FinalizeInput) domain.OrderRequest {
	return domain.OrderRequest{
		Cart:            in.Draft.Cart,
		ShippingAddress: in.Draft.ShippingAddress,
		Buyer:           in.Buyer,
		TotalPrice:      in.Draft.TotalPrice,
		PaymentInfo: domain.PaymentInfo{
			ID:     in.Token.ProviderRef(),
			Status: in.Token.Status,
			Type:   in.Token.Method.PaymentType(),
		},
	}
}

func withErr(fields map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	if err != nil {
		out["error"] = err.Error()
	}
	return out
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
