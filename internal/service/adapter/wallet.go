package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"checkout-orchestrator/internal/apperr"
	"checkout-orchestrator/internal/domain"
	"checkout-orchestrator/internal/infrastructure/payment"
)

// ShippingNotCollected tells the wallet not to ask for an address; it is
// already fixed on the draft.
const ShippingNotCollected = "NO_SHIPPING"

// OrderParams is what the wallet approval surface asks for.
type OrderParams struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Shipping string          `json:"shipping_preference"`
}

type Wallet struct {
	provider payment.WalletProvider
	currency string
	timeout  time.Duration
}

func NewWallet(provider payment.WalletProvider, currency string, timeout time.Duration) *Wallet {
	return &Wallet{provider: provider, currency: currency, timeout: timeout}
}

func (w *Wallet) Method() domain.PaymentMethod { return domain.MethodWallet }

func (w *Wallet) OrderParams(draft *domain.OrderDraft) OrderParams {
	return OrderParams{
		Amount:   draft.TotalPrice,
		Currency: currencyOf(draft, w.currency),
		Shipping: ShippingNotCollected,
	}
}

// CreateOrder opens a provider order for the draft total. The buyer
// approves it out of band.
func (w *Wallet) CreateOrder(ctx context.Context, draft *domain.OrderDraft) (string, OrderParams, error) {
	ctx, cancel := withTimeout(ctx, w.timeout)
	defer cancel()

	params := w.OrderParams(draft)
	id, err := w.provider.CreateOrder(ctx, params.Amount, params.Currency)
	if err != nil {
		return "", OrderParams{}, transportError("create wallet order", err)
	}
	return id, params, nil
}

// Submit captures an approved provider order.
func (w *Wallet) Submit(ctx context.Context, draft *domain.OrderDraft, in Input) (domain.ConfirmationToken, error) {
	if in.ProviderOrderID == "" {
		return domain.ConfirmationToken{}, apperr.ErrApprovalMismatch
	}

	ctx, cancel := withTimeout(ctx, w.timeout)
	defer cancel()

	capture, err := w.provider.Capture(ctx, in.ProviderOrderID)
	if err != nil {
		return domain.ConfirmationToken{}, transportError("capture wallet order", err)
	}
	if capture.PayerID == "" || capture.Status != payment.CaptureCompleted {
		return domain.ConfirmationToken{}, &apperr.DeclineError{
			Reason: fmt.Sprintf("The wallet payment was not completed (%s).", statusOrUnknown(capture.Status)),
		}
	}
	return succeeded(domain.MethodWallet, in.ProviderOrderID), nil
}

func statusOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func errUnexpectedStatus(s string) error {
	return errors.New("unexpected provider status " + statusOrUnknown(s))
}
