// Package adapter drives each payment method to a confirmation token.
//
// Adapters handle their own provider failures: a decline or transport error
// is returned to the caller and never reaches the order finalizer.
package adapter

import (
	"context"
	"fmt"
	"time"

	"checkout-orchestrator/internal/apperr"
	"checkout-orchestrator/internal/domain"
)

// Input carries the method-specific part of a submission.
type Input struct {
	// CardToken is the opaque token produced by the hosted card fields.
	CardToken string
	// ProviderOrderID is the wallet order the buyer approved.
	ProviderOrderID string
}

type Adapter interface {
	Method() domain.PaymentMethod
	Submit(ctx context.Context, draft *domain.OrderDraft, in Input) (domain.ConfirmationToken, error)
}

type Registry map[domain.PaymentMethod]Adapter

func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Method()] = a
	}
	return r
}

func (r Registry) For(m domain.PaymentMethod) (Adapter, error) {
	a, ok := r[m]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrInvalidMethod, m)
	}
	return a, nil
}

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperr.ErrProviderTransport, op, err)
}

func succeeded(m domain.PaymentMethod, providerID string) domain.ConfirmationToken {
	t := domain.ConfirmationToken{Method: m, Status: domain.ConfirmationSucceeded}
	if providerID != "" {
		t.ProviderID = &providerID
	}
	return t
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func currencyOf(draft *domain.OrderDraft, fallback string) string {
	if draft.Currency != "" {
		return draft.Currency
	}
	return fallback
}
