package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"checkout-orchestrator/internal/apperr"
	"checkout-orchestrator/internal/domain"
	"checkout-orchestrator/internal/logger"
	"checkout-orchestrator/internal/metrics"
	"checkout-orchestrator/internal/repo"
	"checkout-orchestrator/internal/service/adapter"
)

// Session identifies the checkout session and the authenticated buyer.
type Session struct {
	ID    string
	Buyer domain.Buyer
}

type AttemptView struct {
	ID                uuid.UUID            `json:"id"`
	Method            domain.PaymentMethod `json:"method"`
	Status            domain.AttemptStatus `json:"status"`
	ProviderReference string               `json:"provider_reference,omitempty"`
}

// PaymentView is what the payment page renders.
type PaymentView struct {
	DraftID      uuid.UUID              `json:"draft_id"`
	Method       domain.PaymentMethod   `json:"method"`
	Methods      []domain.PaymentMethod `json:"methods"`
	Subtotal     decimal.Decimal        `json:"subtotal"`
	ShippingCost decimal.Decimal        `json:"shipping_cost"`
	Tax          decimal.Decimal        `json:"tax"`
	TotalPrice   decimal.Decimal        `json:"total_price"`
	Currency     string                 `json:"currency"`
	Attempt      *AttemptView           `json:"attempt,omitempty"`
}

type WalletOrder struct {
	AttemptID       uuid.UUID           `json:"attempt_id"`
	ProviderOrderID string              `json:"provider_order_id"`
	Params          adapter.OrderParams `json:"params"`
}

type WalletAdapter interface {
	adapter.Adapter
	CreateOrder(ctx context.Context, draft *domain.OrderDraft) (string, adapter.OrderParams, error)
}

type CheckoutService interface {
	LoadPayment(ctx context.Context, sess Session) (*PaymentView, error)
	SelectMethod(ctx context.Context, sess Session, method string) error
	SubmitCard(ctx context.Context, sess Session, cardToken string) (*domain.Order, error)
	CreateWalletOrder(ctx context.Context, sess Session) (*WalletOrder, error)
	ApproveWallet(ctx context.Context, sess Session, providerOrderID string) (*domain.Order, error)
	// CancelWallet always returns a non-nil error; apperr.ErrUserCancelled
	// means the approval was abandoned cleanly.
	CancelWallet(ctx context.Context, sess Session, providerOrderID string) error
	ConfirmPayOnDelivery(ctx context.Context, sess Session) (*domain.Order, error)
}

type checkoutService struct {
	drafts    repo.DraftRepo
	selector  *Selector
	adapters  adapter.Registry
	wallet    WalletAdapter
	finalizer *Finalizer
	cleanup   *Cleanup
	currency  string
}

func NewCheckoutService(
	drafts repo.DraftRepo,
	selector *Selector,
	card adapter.Adapter,
	wallet WalletAdapter,
	finalizer *Finalizer,
	currency string,
) CheckoutService {
	return &checkoutService{
		drafts:    drafts,
		selector:  selector,
		adapters:  adapter.NewRegistry(card, wallet, adapter.NewPayOnDelivery()),
		wallet:    wallet,
		finalizer: finalizer,
		cleanup:   NewCleanup(drafts),
		currency:  currency,
	}
}

func (s *checkoutService) loadDraft(ctx context.Context, sess Session) (*domain.OrderDraft, error) {
	draft, err := s.drafts.GetDraft(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return nil, apperr.ErrMissingDraft
	}
	if draft.BuyerID != "" && draft.BuyerID != sess.Buyer.ID {
		logger.Warn("draft belongs to another buyer", map[string]interface{}{
			"session_id": sess.ID,
			"buyer_id":   sess.Buyer.ID,
		})
		return nil, apperr.ErrMissingDraft
	}
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidDraft, err)
	}
	if draft.Currency == "" {
		draft.Currency = s.currency
	}
	return draft, nil
}

func (s *checkoutService) LoadPayment(ctx context.Context, sess Session) (*PaymentView, error) {
	draft, err := s.loadDraft(ctx, sess)
	if err != nil {
		return nil, err
	}

	view := &PaymentView{
		DraftID:      draft.ID,
		Method:       s.selector.Method(sess.ID),
		Methods:      domain.Methods,
		Subtotal:     draft.Subtotal,
		ShippingCost: draft.ShippingCost,
		Tax:          draft.Tax,
		TotalPrice:   draft.TotalPrice,
		Currency:     draft.Currency,
	}
	if a, ok := s.selector.Attempt(sess.ID); ok {
		view.Attempt = &AttemptView{
			ID:                a.ID,
			Method:            a.Method,
			Status:            a.Status,
			ProviderReference: a.ProviderReference,
		}
	}
	return view, nil
}

func (s *checkoutService) SelectMethod(ctx context.Context, sess Session, method string) error {
	m, err := domain.ParsePaymentMethod(method)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrInvalidMethod, err)
	}
	return s.selector.Select(sess.ID, m)
}

func (s *checkoutService) SubmitCard(ctx context.Context, sess Session, cardToken string) (*domain.Order, error) {
	return s.submit(ctx, sess, domain.MethodCard, adapter.Input{CardToken: cardToken})
}

func (s *checkoutService) ConfirmPayOnDelivery(ctx context.Context, sess Session) (*domain.Order, error) {
	return s.submit(ctx, sess, domain.MethodPayOnDelivery, adapter.Input{})
}

func (s *checkoutService) CreateWalletOrder(ctx context.Context, sess Session) (*WalletOrder, error) {
	if _, err := s.loadDraft(ctx, sess); err != nil {
		return nil, err
	}

	attempt, draft, recorded, err := s.begin(ctx, sess, domain.MethodWallet)
	if err != nil {
		return nil, err
	}
	if recorded != nil {
		return nil, fmt.Errorf("%w: order %s already placed", apperr.ErrMissingDraft, recorded.ID)
	}

	id, params, err := s.wallet.CreateOrder(ctx, draft)
	if err != nil {
		s.fail(sess, attempt, err)
		return nil, err
	}
	if err := s.selector.AwaitApproval(sess.ID, attempt.ID, id); err != nil {
		return nil, err
	}

	logger.Info("wallet order created, awaiting approval", map[string]interface{}{
		"session_id":        sess.ID,
		"attempt_id":        attempt.ID,
		"provider_order_id": id,
	})
	return &WalletOrder{AttemptID: attempt.ID, ProviderOrderID: id, Params: params}, nil
}

func (s *checkoutService) ApproveWallet(ctx context.Context, sess Session, providerOrderID string) (*domain.Order, error) {
	draft, err := s.loadDraft(ctx, sess)
	if err != nil {
		return nil, err
	}

	attempt, err := s.selector.StartCapture(sess.ID, providerOrderID)
	if err != nil {
		return nil, err
	}

	recorded, err := s.settled(ctx, sess, draft)
	switch {
	case err != nil:
		s.selector.Finish(sess.ID, attempt.ID, domain.AttemptFailed)
		return nil, err
	case recorded != nil:
		logger.Warn("wallet approval dropped without capture", map[string]interface{}{
			"session_id":        sess.ID,
			"attempt_id":        attempt.ID,
			"provider_order_id": providerOrderID,
		})
		s.selector.Finish(sess.ID, attempt.ID, domain.AttemptCancelled)
		return recorded, nil
	}
	return s.complete(ctx, sess, draft, attempt, s.wallet, adapter.Input{ProviderOrderID: providerOrderID})
}

func (s *checkoutService) CancelWallet(ctx context.Context, sess Session, providerOrderID string) error {
	attempt, err := s.selector.Cancel(sess.ID, providerOrderID)
	if err != nil {
		return err
	}

	metrics.AttemptsTotal.WithLabelValues(string(attempt.Method), "cancelled").Inc()
	logger.Info("wallet approval cancelled by buyer", map[string]interface{}{
		"session_id":        sess.ID,
		"attempt_id":        attempt.ID,
		"provider_order_id": attempt.ProviderReference,
	})
	return apperr.ErrUserCancelled
}

// submit runs a one-shot method: the draft is checked before any adapter
// is chosen, then the attempt claims the session.
func (s *checkoutService) submit(ctx context.Context, sess Session, method domain.PaymentMethod, in adapter.Input) (*domain.Order, error) {
	if _, err := s.loadDraft(ctx, sess); err != nil {
		return nil, err
	}

	a, err := s.adapters.For(method)
	if err != nil {
		return nil, err
	}

	attempt, draft, recorded, err := s.begin(ctx, sess, method)
	if err != nil {
		return nil, err
	}
	if recorded != nil {
		return recorded, nil
	}
	return s.complete(ctx, sess, draft, attempt, a, in)
}

// begin claims the session and re-reads the draft under the claim: a
// concurrent submit may have finished and cleared it in between. A draft
// the journal already holds an order for returns that order instead.
func (s *checkoutService) begin(ctx context.Context, sess Session, method domain.PaymentMethod) (domain.PaymentAttempt, *domain.OrderDraft, *domain.Order, error) {
	attempt, err := s.selector.Begin(sess.ID, method)
	if err != nil {
		return domain.PaymentAttempt{}, nil, nil, err
	}
	draft, err := s.loadDraft(ctx, sess)
	if err != nil {
		s.selector.Finish(sess.ID, attempt.ID, domain.AttemptFailed)
		return domain.PaymentAttempt{}, nil, nil, err
	}

	recorded, err := s.settled(ctx, sess, draft)
	switch {
	case err != nil:
		s.selector.Finish(sess.ID, attempt.ID, domain.AttemptFailed)
		return domain.PaymentAttempt{}, nil, nil, err
	case recorded != nil:
		s.selector.Finish(sess.ID, attempt.ID, domain.AttemptConfirmed)
		return domain.PaymentAttempt{}, nil, recorded, nil
	}
	return attempt, draft, nil, nil
}

// settled asks the finalization journal about the draft before any
// provider is contacted. When an order already exists the session cleanup
// that must have failed earlier is retried.
func (s *checkoutService) settled(ctx context.Context, sess Session, draft *domain.OrderDraft) (*domain.Order, error) {
	order, err := s.finalizer.Check(ctx, draft.ID)
	if err != nil || order == nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"session_id": sess.ID,
		"draft_id":   draft.ID,
		"order_id":   order.ID,
	}
	logger.Warn("draft already finalized, retrying session cleanup", fields)
	if err := s.cleanup.Clear(context.WithoutCancel(ctx), sess.ID); err != nil {
		logger.Error(err, "session cleanup failed after order creation", fields)
	}
	return order, nil
}

// complete drives the adapter, then finalizes at most once and clears the
// session only after the order exists.
func (s *checkoutService) complete(
	ctx context.Context,
	sess Session,
	draft *domain.OrderDraft,
	attempt domain.PaymentAttempt,
	a adapter.Adapter,
	in adapter.Input,
) (*domain.Order, error) {
	// A submitted attempt runs to completion even if the buyer goes away.
	// The adapters and the finalizer bound their calls with timeouts.
	ctx = context.WithoutCancel(ctx)

	fields := map[string]interface{}{
		"session_id": sess.ID,
		"attempt_id": attempt.ID,
		"method":     attempt.Method,
	}

	start := time.Now()
	token, err := a.Submit(ctx, draft, in)
	metrics.AdapterDuration.WithLabelValues(string(attempt.Method)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.fail(sess, attempt, err)
		return nil, err
	}

	if err := s.selector.ClaimFinalize(sess.ID, attempt.ID); err != nil {
		return nil, err
	}
	fields["provider_id"] = token.ProviderRef()
	logger.Info("payment confirmed, finalizing order", fields)

	order, err := s.finalizer.Finalize(ctx, FinalizeInput{
		SessionID: sess.ID,
		Buyer:     sess.Buyer,
		Draft:     draft,
		Attempt:   attempt,
		Token:     token,
	})
	if err != nil {
		s.fail(sess, attempt, err)
		return nil, err
	}

	if err := s.cleanup.Clear(ctx, sess.ID); err != nil {
		fields["order_id"] = order.ID
		logger.Error(err, "session cleanup failed after order creation", fields)
	}
	s.selector.Finish(sess.ID, attempt.ID, domain.AttemptConfirmed)
	metrics.AttemptsTotal.WithLabelValues(string(attempt.Method), "confirmed").Inc()
	return order, nil
}

func (s *checkoutService) fail(sess Session, attempt domain.PaymentAttempt, err error) {
	s.selector.Finish(sess.ID, attempt.ID, domain.AttemptFailed)

	kind := apperr.Kind(err)
	metrics.AttemptsTotal.WithLabelValues(string(attempt.Method), kind).Inc()
	logger.Warn("payment attempt failed", map[string]interface{}{
		"session_id": sess.ID,
		"attempt_id": attempt.ID,
		"method":     attempt.Method,
		"kind":       kind,
		"error":      err.Error(),
	})
}
