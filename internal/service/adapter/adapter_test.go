package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-orchestrator/internal/apperr"
	"checkout-orchestrator/internal/domain"
	"checkout-orchestrator/internal/infrastructure/payment"
)

type fakeIntents struct {
	amounts    []int64
	currencies []string
	err        error
}

func (f *fakeIntents) CreateIntent(ctx context.Context, amount int64, currency string) (payment.Intent, error) {
	f.amounts = append(f.amounts, amount)
	f.currencies = append(f.currencies, currency)
	if f.err != nil {
		return payment.Intent{}, f.err
	}
	return payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret_x", Amount: amount, Currency: currency}, nil
}

type fakeProcessor struct {
	res     payment.CardConfirmation
	err     error
	secrets []string
}

func (f *fakeProcessor) ConfirmCardPayment(ctx context.Context, clientSecret, cardToken string) (payment.CardConfirmation, error) {
	f.secrets = append(f.secrets, clientSecret)
	return f.res, f.err
}

type fakeWallet struct {
	capture  payment.Capture
	err      error
	captured []string
}

func (f *fakeWallet) CreateOrder(ctx context.Context, amount decimal.Decimal, currency string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "WO-1", nil
}

func (f *fakeWallet) Capture(ctx context.Context, id string) (payment.Capture, error) {
	f.captured = append(f.captured, id)
	return f.capture, f.err
}

func draft(total string) *domain.OrderDraft {
	return &domain.OrderDraft{
		ID:         uuid.New(),
		Cart:       []domain.LineItem{{ProductID: "sku-1", Quantity: 1, UnitPrice: decimal.RequireFromString(total)}},
		TotalPrice: decimal.RequireFromString(total),
	}
}

func TestCardRequestsMinorUnits(t *testing.T) {
	t.Parallel()

	intents := &fakeIntents{}
	processor := &fakeProcessor{res: payment.CardConfirmation{Status: payment.CardSucceeded, PaymentIntentID: "pi_1"}}
	card := NewCard(intents, processor, "INR", time.Second)

	tok, err := card.Submit(context.Background(), draft("944.00"), Input{CardToken: "tok_visa"})
	require.NoError(t, err)

	assert.Equal(t, []int64{94400}, intents.amounts)
	assert.Equal(t, []string{"INR"}, intents.currencies)
	assert.Equal(t, []string{"pi_1_secret_x"}, processor.secrets)
	assert.True(t, tok.Succeeded())
	assert.Equal(t, domain.MethodCard, tok.Method)
	assert.Equal(t, "pi_1", tok.ProviderRef())
}

func TestCardOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		token     string
		intentErr error
		res       payment.CardConfirmation
		procErr   error
		wantKind  string
		wantMsg   string
	}{
		{
			name:     "declined",
			token:    "tok",
			res:      payment.CardConfirmation{Status: payment.CardDeclined, DeclineReason: "Insufficient <b>funds</b> &amp; more"},
			wantKind: "provider_decline",
			wantMsg:  "payment declined: Insufficient funds & more",
		},
		{
			name:     "requires action",
			token:    "tok",
			res:      payment.CardConfirmation{Status: payment.CardRequiresAction},
			wantKind: "provider_decline",
			wantMsg:  "payment declined: " + defaultDeclineReason,
		},
		{
			name:      "intent transport error",
			token:     "tok",
			intentErr: errors.New("connection refused"),
			wantKind:  "provider_transport",
		},
		{
			name:     "confirm transport error",
			token:    "tok",
			procErr:  payment.ErrConnectionTimeout,
			wantKind: "provider_transport",
		},
		{
			name:     "unexpected status",
			token:    "tok",
			res:      payment.CardConfirmation{Status: "processing"},
			wantKind: "provider_transport",
		},
		{
			name:     "missing token",
			token:    " ",
			wantKind: "provider_decline",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			card := NewCard(&fakeIntents{err: tt.intentErr}, &fakeProcessor{res: tt.res, err: tt.procErr}, "INR", time.Second)
			_, err := card.Submit(context.Background(), draft("10.00"), Input{CardToken: tt.token})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.Kind(err))
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, err.Error())
			}
		})
	}
}

func TestCardWithMockGateway(t *testing.T) {
	t.Parallel()

	gw := payment.NewMockGateway()
	card := NewCard(gw, gw, "INR", time.Second)

	tok, err := card.Submit(context.Background(), draft("19.99"), Input{CardToken: payment.TokenSuccess})
	require.NoError(t, err)
	assert.Contains(t, tok.ProviderRef(), "pi_")

	_, err = card.Submit(context.Background(), draft("19.99"), Input{CardToken: payment.TokenTimeout})
	assert.ErrorIs(t, err, apperr.ErrProviderTransport)
}

func TestWallet(t *testing.T) {
	t.Parallel()

	t.Run("order params skip shipping", func(t *testing.T) {
		t.Parallel()
		w := NewWallet(&fakeWallet{}, "INR", time.Second)

		id, params, err := w.CreateOrder(context.Background(), draft("944.00"))
		require.NoError(t, err)
		assert.Equal(t, "WO-1", id)
		assert.Equal(t, ShippingNotCollected, params.Shipping)
		assert.Equal(t, "INR", params.Currency)
		assert.True(t, params.Amount.Equal(decimal.RequireFromString("944")))
	})

	t.Run("capture completed", func(t *testing.T) {
		t.Parallel()
		fw := &fakeWallet{capture: payment.Capture{PayerID: "P1", Status: payment.CaptureCompleted}}
		w := NewWallet(fw, "INR", time.Second)

		tok, err := w.Submit(context.Background(), draft("5"), Input{ProviderOrderID: "WO-1"})
		require.NoError(t, err)
		assert.Equal(t, domain.MethodWallet, tok.Method)
		assert.Equal(t, "WO-1", tok.ProviderRef())
		assert.Equal(t, []string{"WO-1"}, fw.captured)
	})

	t.Run("capture without payer fails", func(t *testing.T) {
		t.Parallel()
		w := NewWallet(&fakeWallet{capture: payment.Capture{Status: payment.CaptureCompleted}}, "INR", time.Second)

		_, err := w.Submit(context.Background(), draft("5"), Input{ProviderOrderID: "WO-1"})
		assert.Equal(t, "provider_decline", apperr.Kind(err))
	})

	t.Run("capture error is retryable", func(t *testing.T) {
		t.Parallel()
		w := NewWallet(&fakeWallet{err: errors.New("502")}, "INR", time.Second)

		_, err := w.Submit(context.Background(), draft("5"), Input{ProviderOrderID: "WO-1"})
		assert.ErrorIs(t, err, apperr.ErrProviderTransport)
		assert.True(t, apperr.Retryable(err))
	})

	t.Run("missing order id", func(t *testing.T) {
		t.Parallel()
		w := NewWallet(&fakeWallet{}, "INR", time.Second)

		_, err := w.Submit(context.Background(), draft("5"), Input{})
		assert.ErrorIs(t, err, apperr.ErrApprovalMismatch)
	})
}

func TestPayOnDelivery(t *testing.T) {
	t.Parallel()

	tok, err := NewPayOnDelivery().Submit(context.Background(), draft("5"), Input{})
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPayOnDelivery, tok.Method)
	assert.Nil(t, tok.ProviderID)
	assert.True(t, tok.Succeeded())
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(NewPayOnDelivery())
	a, err := r.For(domain.MethodPayOnDelivery)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPayOnDelivery, a.Method())

	_, err = r.For(domain.MethodCard)
	assert.ErrorIs(t, err, apperr.ErrInvalidMethod)
}
