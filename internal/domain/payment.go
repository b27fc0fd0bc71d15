package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PaymentMethod string

const (
	MethodCard          PaymentMethod = "card"
	MethodWallet        PaymentMethod = "wallet"
	MethodPayOnDelivery PaymentMethod = "pay_on_delivery"
)

// DefaultMethod is what a fresh checkout session starts with.
const DefaultMethod = MethodCard

// Methods lists the payment methods in display order.
var Methods = []PaymentMethod{MethodCard, MethodWallet, MethodPayOnDelivery}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown payment method %q", s)
	}
	return m, nil
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodWallet, MethodPayOnDelivery:
		return true
	}
	return false
}

// PaymentType is the label the order backend expects in paymentInfo.type.
func (m PaymentMethod) PaymentType() string {
	switch m {
	case MethodCard:
		return "Credit Card"
	case MethodWallet:
		return "Paypal"
	case MethodPayOnDelivery:
		return "Cash On Delivery"
	}
	return ""
}

type AttemptStatus string

const (
	AttemptIdle             AttemptStatus = "IDLE"
	AttemptInProgress       AttemptStatus = "IN_PROGRESS"
	AttemptAwaitingApproval AttemptStatus = "AWAITING_APPROVAL"
	AttemptCapturing        AttemptStatus = "CAPTURING"
	AttemptConfirmed        AttemptStatus = "CONFIRMED"
	AttemptFailed           AttemptStatus = "FAILED"
	AttemptCancelled        AttemptStatus = "CANCELLED"
)

// Terminal reports whether the attempt can no longer change.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptConfirmed || s == AttemptFailed || s == AttemptCancelled
}

// Active reports whether the attempt holds the session's draft.
func (s AttemptStatus) Active() bool {
	switch s {
	case AttemptInProgress, AttemptAwaitingApproval, AttemptCapturing:
		return true
	}
	return false
}

// PaymentAttempt is one buyer submission against the draft.
type PaymentAttempt struct {
	ID                uuid.UUID
	Method            PaymentMethod
	ProviderReference string
	Status            AttemptStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const ConfirmationSucceeded = "succeeded"

// ConfirmationToken is what a payment adapter hands to the finalizer once
// the buyer has paid (or, for pay on delivery, committed to paying).
type ConfirmationToken struct {
	Method     PaymentMethod
	ProviderID *string
	Status     string
}

func (t ConfirmationToken) Succeeded() bool {
	return t.Status == ConfirmationSucceeded
}

// ProviderRef returns the provider id or "" when there is none.
func (t ConfirmationToken) ProviderRef() string {
	if t.ProviderID == nil {
		return ""
	}
	return *t.ProviderID
}
