// Package apperr holds the checkout error taxonomy and its classification
// into kinds and HTTP statuses.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrMissingDraft      = errors.New("no pending order draft")
	ErrInvalidDraft      = errors.New("order draft is invalid")
	ErrProviderTransport = errors.New("payment provider unavailable")
	ErrUserCancelled     = errors.New("payment cancelled by buyer")
	ErrAttemptInProgress = errors.New("a payment attempt is already in progress")
	ErrNoActiveAttempt   = errors.New("no payment attempt in progress")
	ErrApprovalMismatch  = errors.New("approval does not match the active payment attempt")
	ErrInvalidMethod     = errors.New("unknown payment method")
	ErrMethodNotSelected = errors.New("payment method is not the selected one")
	ErrTokenNotSucceeded = errors.New("payment confirmation has not succeeded")
	ErrAlreadyFinalizing = errors.New("order is already being finalized")
	ErrUnsettledPayment  = errors.New("an earlier payment for this order is not yet settled")
)

// DeclineError is a provider refusal the buyer can fix (other card,
// completing 3-D Secure, approving in the wallet).
type DeclineError struct {
	Reason string
}

func (e *DeclineError) Error() string { return "payment declined: " + e.Reason }
func (e *DeclineError) Kind() string  { return "provider_decline" }

// FinalizationError means the adapter confirmed payment but the order could
// not be confirmed. The outcome on the backend is unknown.
type FinalizationError struct {
	Method          string
	ProviderID      string
	PaymentCaptured bool
	Err             error
}

func (e *FinalizationError) Error() string {
	if e.PaymentCaptured {
		return "payment captured, order not confirmed: " + e.Err.Error()
	}
	return "order not confirmed: " + e.Err.Error()
}

func (e *FinalizationError) Unwrap() error { return e.Err }
func (e *FinalizationError) Kind() string  { return "finalization_failed" }

// Kind returns a stable classification string for err.
func Kind(err error) string {
	var decline *DeclineError
	var final *FinalizationError

	switch {
	case err == nil:
		return ""

	// Finalization wraps arbitrary transport errors, so it is checked first.
	case errors.As(err, &final):
		return final.Kind()

	case errors.As(err, &decline):
		return decline.Kind()

	case errors.Is(err, ErrMissingDraft):
		return "missing_draft"

	case errors.Is(err, ErrInvalidDraft):
		return "invalid_draft"

	case errors.Is(err, ErrProviderTransport):
		return "provider_transport"

	case errors.Is(err, ErrUserCancelled):
		return "cancelled"

	case errors.Is(err, ErrAttemptInProgress), errors.Is(err, ErrAlreadyFinalizing):
		return "attempt_in_progress"

	case errors.Is(err, ErrNoActiveAttempt):
		return "no_active_attempt"

	case errors.Is(err, ErrApprovalMismatch):
		return "approval_mismatch"

	case errors.Is(err, ErrInvalidMethod):
		return "invalid_method"

	case errors.Is(err, ErrMethodNotSelected):
		return "method_not_selected"

	case errors.Is(err, ErrUnsettledPayment):
		return "unsettled_payment"

	case errors.Is(err, ErrTokenNotSucceeded):
		return "not_confirmed"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

var kindToStatus = map[string]int{
	"":                    http.StatusOK,
	"missing_draft":       http.StatusPreconditionFailed,
	"invalid_draft":       http.StatusPreconditionFailed,
	"provider_decline":    http.StatusPaymentRequired,
	"provider_transport":  http.StatusBadGateway,
	"cancelled":           http.StatusOK,
	"attempt_in_progress": http.StatusConflict,
	"no_active_attempt":   http.StatusConflict,
	"approval_mismatch":   http.StatusConflict,
	"invalid_method":      http.StatusBadRequest,
	"method_not_selected": http.StatusConflict,
	"unsettled_payment":   http.StatusConflict,
	"not_confirmed":       http.StatusUnprocessableEntity,
	"finalization_failed": http.StatusBadGateway,
	"timeout":             http.StatusGatewayTimeout,
	"canceled":            http.StatusRequestTimeout,
}

func HTTPStatus(err error) int {
	if s, ok := kindToStatus[Kind(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the buyer may simply submit again with a fresh
// attempt. Finalization failures are deliberately not retryable.
func Retryable(err error) bool {
	switch Kind(err) {
	case "provider_decline", "provider_transport", "cancelled", "timeout", "canceled":
		return true
	}
	return false
}
