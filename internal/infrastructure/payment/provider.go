package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Intent is a server-issued card payment intent. ClientSecret is handed to
// the card processor only; it never travels to the order API.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}

// IntentAPI issues payment intents sized in minor units.
type IntentAPI interface {
	CreateIntent(ctx context.Context, amount int64, currency string) (Intent, error)
}

type CardStatus string

const (
	CardSucceeded      CardStatus = "succeeded"
	CardRequiresAction CardStatus = "requires_action"
	CardDeclined       CardStatus = "declined"
)

type CardConfirmation struct {
	Status          CardStatus
	PaymentIntentID string
	DeclineReason   string
}

// CardProcessor confirms an intent with tokenized card data collected by
// the hosted fields.
type CardProcessor interface {
	ConfirmCardPayment(ctx context.Context, clientSecret, cardToken string) (CardConfirmation, error)
}

const CaptureCompleted = "COMPLETED"

type Capture struct {
	CaptureID string
	PayerID   string
	Status    string
}

// WalletProvider is the redirect/popup wallet: the buyer approves the
// provider order out of band, then we capture it.
type WalletProvider interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency string) (string, error)
	Capture(ctx context.Context, providerOrderID string) (Capture, error)
}
