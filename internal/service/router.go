package service

import (
	"errors"

	"checkout-orchestrator/internal/apperr"
	"checkout-orchestrator/internal/domain"
)

type ResultState string

const (
	StateSuccess            ResultState = "success"
	StateRecoverableFailure ResultState = "recoverable_failure"
	StatePreconditionFailed ResultState = "precondition_failed"
)

const (
	PaymentPath = "/checkout/payment"
	CartPath    = "/cart"
	successPath = "/order/success/"
)

const (
	msgContactSupport = "Your payment went through but we could not confirm your order. Please contact support before paying again."
	msgOrderFailed    = "We could not place your order. Please contact support."
	msgUnsettled      = "We are still confirming your earlier payment for this order. Please contact support before paying again."
	msgTransport      = "We could not reach the payment provider. Please try again."
	msgGeneric        = "Something went wrong. Please try again."
)

// Result is the single user-visible outcome of a checkout step.
type Result struct {
	State     ResultState `json:"state"`
	Redirect  string      `json:"redirect"`
	Message   string      `json:"message,omitempty"`
	Kind      string      `json:"kind,omitempty"`
	OrderID   string      `json:"order_id,omitempty"`
	Retryable bool        `json:"retryable"`
}

// Route maps a terminal outcome to exactly one view.
func Route(order *domain.Order, err error) Result {
	if err == nil && order != nil {
		return Result{
			State:    StateSuccess,
			Redirect: successPath + order.ID,
			OrderID:  order.ID,
		}
	}
	if err == nil {
		err = errEmptyOrder
	}

	kind := apperr.Kind(err)
	res := Result{
		State:     StateRecoverableFailure,
		Redirect:  PaymentPath,
		Kind:      kind,
		Retryable: apperr.Retryable(err),
	}

	var decline *apperr.DeclineError
	var final *apperr.FinalizationError

	switch {
	case errors.Is(err, apperr.ErrMissingDraft), errors.Is(err, apperr.ErrInvalidDraft):
		res.State = StatePreconditionFailed
		res.Redirect = CartPath
		res.Retryable = false

	case errors.Is(err, apperr.ErrUserCancelled):
		// silent return to the payment view

	case errors.Is(err, apperr.ErrUnsettledPayment):
		res.Message = msgUnsettled

	case errors.As(err, &final):
		res.Message = msgOrderFailed
		if final.PaymentCaptured {
			res.Message = msgContactSupport
		}

	case errors.As(err, &decline):
		res.Message = decline.Reason

	case errors.Is(err, apperr.ErrProviderTransport), kind == "timeout", kind == "canceled":
		res.Message = msgTransport

	case kind == "internal":
		res.Message = msgGeneric

	default:
		res.Message = capitalize(err.Error())
	}
	return res
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:] + "."
	}
	return s + "."
}
