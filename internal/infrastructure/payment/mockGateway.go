package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"checkout-orchestrator/internal/logger"
)

// Card tokens understood by the mock processor when random outcomes are off.
const (
	TokenSuccess        = "tok_visa"
	TokenDecline        = "tok_chargeDeclined"
	TokenRequiresAction = "tok_threeDSecure"
	TokenTimeout        = "tok_timeout"
)

var (
	ErrUnknownIntent      = errors.New("no such payment intent")
	ErrUnknownWalletOrder = errors.New("no such wallet order")
	ErrConnectionTimeout  = errors.New("connection timeout")
)

type walletOrder struct {
	amount   decimal.Decimal
	currency string
	denied   bool
	capture  *Capture
}

// MockGateway plays the card processor, the payment-intent API and the
// wallet provider for local runs and the simulator.
type MockGateway struct {
	mu        sync.RWMutex
	intents   map[string]Intent
	confirmed map[string]CardConfirmation
	orders    map[string]*walletOrder

	random  bool
	latency time.Duration
}

type Option func(*MockGateway)

// WithRandomOutcomes makes every confirmation and capture roll the dice:
// 70% success, 20% decline, 10% charged-but-timed-out.
func WithRandomOutcomes() Option {
	return func(g *MockGateway) { g.random = true }
}

func WithLatency(d time.Duration) Option {
	return func(g *MockGateway) { g.latency = d }
}

func NewMockGateway(opts ...Option) *MockGateway {
	g := &MockGateway{
		intents:   make(map[string]Intent),
		confirmed: make(map[string]CardConfirmation),
		orders:    make(map[string]*walletOrder),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *MockGateway) CreateIntent(ctx context.Context, amount int64, currency string) (Intent, error) {
	if amount <= 0 {
		return Intent{}, fmt.Errorf("amount must be positive, got %d", amount)
	}
	if err := waitOrCancel(ctx, g.latency); err != nil {
		return Intent{}, err
	}

	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	intent := Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.NewString()[:8],
		Amount:       amount,
		Currency:     currency,
	}

	g.mu.Lock()
	g.intents[intent.ClientSecret] = intent
	g.mu.Unlock()

	return intent, nil
}

func (g *MockGateway) ConfirmCardPayment(ctx context.Context, clientSecret, cardToken string) (CardConfirmation, error) {
	g.mu.RLock()
	intent, ok := g.intents[clientSecret]
	if !ok {
		g.mu.RUnlock()
		return CardConfirmation{}, ErrUnknownIntent
	}
	// An intent confirms once; later calls see the same answer.
	if res, done := g.confirmed[intent.ID]; done {
		g.mu.RUnlock()
		return res, nil
	}
	g.mu.RUnlock()

	if err := waitOrCancel(ctx, g.latency); err != nil {
		return CardConfirmation{}, err
	}

	outcome := cardToken
	if g.random {
		outcome = rollOutcome()
	}

	switch outcome {
	case TokenSuccess:
		return g.recordCard(intent.ID, CardConfirmation{Status: CardSucceeded, PaymentIntentID: intent.ID}), nil

	case TokenDecline:
		return g.recordCard(intent.ID, CardConfirmation{
			Status:          CardDeclined,
			PaymentIntentID: intent.ID,
			DeclineReason:   "Your card has insufficient funds.",
		}), nil

	case TokenRequiresAction:
		return CardConfirmation{
			Status:          CardRequiresAction,
			PaymentIntentID: intent.ID,
			DeclineReason:   "Your bank requires additional authentication.",
		}, nil

	case TokenTimeout:
		// The processor charges the card but the answer never arrives.
		g.recordCard(intent.ID, CardConfirmation{Status: CardSucceeded, PaymentIntentID: intent.ID})
		logger.Warn("mock processor charged card but dropped the response", map[string]interface{}{
			"intent_id": intent.ID,
		})
		return CardConfirmation{}, ErrConnectionTimeout

	default:
		return g.recordCard(intent.ID, CardConfirmation{
			Status:          CardDeclined,
			PaymentIntentID: intent.ID,
			DeclineReason:   "Your card number is invalid.",
		}), nil
	}
}

func (g *MockGateway) recordCard(intentID string, res CardConfirmation) CardConfirmation {
	g.mu.Lock()
	g.confirmed[intentID] = res
	g.mu.Unlock()
	return res
}

func (g *MockGateway) CreateOrder(ctx context.Context, amount decimal.Decimal, currency string) (string, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("amount must be positive, got %s", amount)
	}
	if err := waitOrCancel(ctx, g.latency); err != nil {
		return "", err
	}

	id := "WO-" + strings.ToUpper(uuid.NewString()[:13])

	g.mu.Lock()
	g.orders[id] = &walletOrder{amount: amount, currency: currency}
	g.mu.Unlock()

	return id, nil
}

// Deny marks a wallet order as never approved by the payer.
func (g *MockGateway) Deny(providerOrderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if o, ok := g.orders[providerOrderID]; ok {
		o.denied = true
	}
}

func (g *MockGateway) Capture(ctx context.Context, providerOrderID string) (Capture, error) {
	g.mu.RLock()
	o, ok := g.orders[providerOrderID]
	if !ok {
		g.mu.RUnlock()
		return Capture{}, ErrUnknownWalletOrder
	}
	if o.capture != nil {
		c := *o.capture
		g.mu.RUnlock()
		return c, nil
	}
	denied := o.denied
	g.mu.RUnlock()

	if err := waitOrCancel(ctx, g.latency); err != nil {
		return Capture{}, err
	}
	if denied {
		return Capture{Status: "PAYER_ACTION_REQUIRED"}, nil
	}

	capture := Capture{
		CaptureID: "CAP-" + strings.ToUpper(uuid.NewString()[:13]),
		PayerID:   "PAYER" + strings.ToUpper(uuid.NewString()[:8]),
		Status:    CaptureCompleted,
	}

	g.mu.Lock()
	o.capture = &capture
	g.mu.Unlock()

	if g.random && rollOutcome() == TokenTimeout {
		return Capture{}, ErrConnectionTimeout
	}
	return capture, nil
}

func rollOutcome() string {
	chance := rand.IntN(100)
	switch {
	case chance < 70:
		return TokenSuccess
	case chance < 90:
		return TokenDecline
	default:
		return TokenTimeout
	}
}

// waitOrCancel blocks for d or until ctx is done.
func waitOrCancel(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
