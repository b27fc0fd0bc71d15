package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"checkout-orchestrator/internal/infrastructure/payment"
)

// ProviderGateway reaches the card processor and the wallet through the
// payment backend, which holds the provider credentials.
type ProviderGateway struct {
	client *Client
}

func NewProviderGateway(client *Client) *ProviderGateway {
	return &ProviderGateway{client: client}
}

type confirmRequest struct {
	ClientSecret string `json:"client_secret"`
	CardToken    string `json:"payment_method"`
}

type confirmResponse struct {
	Status          string `json:"status"`
	PaymentIntentID string `json:"payment_intent_id"`
	DeclineReason   string `json:"decline_reason"`
}

func (g *ProviderGateway) ConfirmCardPayment(ctx context.Context, clientSecret, cardToken string) (payment.CardConfirmation, error) {
	var out confirmResponse
	err := g.client.do(ctx, http.MethodPost, "/payment/confirm", confirmRequest{ClientSecret: clientSecret, CardToken: cardToken}, &out)
	if err != nil {
		return payment.CardConfirmation{}, err
	}
	if out.Status == "" {
		return payment.CardConfirmation{}, fmt.Errorf("confirm card payment: response carried no status")
	}
	return payment.CardConfirmation{
		Status:          payment.CardStatus(out.Status),
		PaymentIntentID: out.PaymentIntentID,
		DeclineReason:   out.DeclineReason,
	}, nil
}

type walletOrderRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Shipping string          `json:"shipping_preference"`
}

type walletOrderResponse struct {
	ID string `json:"id"`
}

func (g *ProviderGateway) CreateOrder(ctx context.Context, amount decimal.Decimal, currency string) (string, error) {
	var out walletOrderResponse
	req := walletOrderRequest{Amount: amount, Currency: currency, Shipping: "NO_SHIPPING"}
	if err := g.client.do(ctx, http.MethodPost, "/payment/wallet/orders", req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("create wallet order: response carried no id")
	}
	return out.ID, nil
}

type captureResponse struct {
	CaptureID string `json:"capture_id"`
	PayerID   string `json:"payer_id"`
	Status    string `json:"status"`
}

func (g *ProviderGateway) Capture(ctx context.Context, providerOrderID string) (payment.Capture, error) {
	var out captureResponse
	path := "/payment/wallet/orders/" + url.PathEscape(providerOrderID) + "/capture"
	if err := g.client.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return payment.Capture{}, err
	}
	return payment.Capture{CaptureID: out.CaptureID, PayerID: out.PayerID, Status: out.Status}, nil
}
