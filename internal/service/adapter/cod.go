package adapter

import (
	"context"

	"checkout-orchestrator/internal/domain"
)

// PayOnDelivery makes no external call; the buyer pays the courier.
type PayOnDelivery struct{}

func NewPayOnDelivery() PayOnDelivery { return PayOnDelivery{} }

func (PayOnDelivery) Method() domain.PaymentMethod { return domain.MethodPayOnDelivery }

func (PayOnDelivery) Submit(ctx context.Context, draft *domain.OrderDraft, in Input) (domain.ConfirmationToken, error) {
	return succeeded(domain.MethodPayOnDelivery, ""), nil
}
