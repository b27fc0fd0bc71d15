package adapter

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"checkout-orchestrator/internal/apperr"
	"checkout-orchestrator/internal/domain"
	"checkout-orchestrator/internal/infrastructure/payment"
	"checkout-orchestrator/internal/logger"
)

const defaultDeclineReason = "Your card was declined."

// Card confirms a server-issued payment intent with a hosted-field token.
// Raw card data never reaches this service.
type Card struct {
	intents   payment.IntentAPI
	processor payment.CardProcessor
	currency  string
	timeout   time.Duration
	policy    *bluemonday.Policy
}

func NewCard(intents payment.IntentAPI, processor payment.CardProcessor, currency string, timeout time.Duration) *Card {
	return &Card{
		intents:   intents,
		processor: processor,
		currency:  currency,
		timeout:   timeout,
		policy:    bluemonday.StrictPolicy(),
	}
}

func (c *Card) Method() domain.PaymentMethod { return domain.MethodCard }

func (c *Card) Submit(ctx context.Context, draft *domain.OrderDraft, in Input) (domain.ConfirmationToken, error) {
	if strings.TrimSpace(in.CardToken) == "" {
		return domain.ConfirmationToken{}, &apperr.DeclineError{Reason: "Your card details are incomplete."}
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	amount := domain.MinorUnits(draft.TotalPrice)
	intent, err := c.intents.CreateIntent(ctx, amount, currencyOf(draft, c.currency))
	if err != nil {
		return domain.ConfirmationToken{}, transportError("create payment intent", err)
	}

	logger.Debug("payment intent created", map[string]interface{}{
		"intent_id": intent.ID,
		"amount":    amount,
	})

	res, err := c.processor.ConfirmCardPayment(ctx, intent.ClientSecret, in.CardToken)
	if err != nil {
		return domain.ConfirmationToken{}, transportError("confirm card payment", err)
	}

	switch res.Status {
	case payment.CardSucceeded:
		id := res.PaymentIntentID
		if id == "" {
			id = intent.ID
		}
		return succeeded(domain.MethodCard, id), nil

	case payment.CardRequiresAction, payment.CardDeclined:
		return domain.ConfirmationToken{}, &apperr.DeclineError{Reason: c.reason(res.DeclineReason)}

	default:
		return domain.ConfirmationToken{}, transportError("confirm card payment", errUnexpectedStatus(string(res.Status)))
	}
}

// reason strips markup from a provider message before it is shown to the buyer.
func (c *Card) reason(raw string) string {
	clean := strings.TrimSpace(html.UnescapeString(c.policy.Sanitize(raw)))
	if clean == "" {
		return defaultDeclineReason
	}
	return clean
}
