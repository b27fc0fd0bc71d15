package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type FinalizationStatus string

const (
	FinalizationPending     FinalizationStatus = "PENDING"
	FinalizationConfirmed   FinalizationStatus = "CONFIRMED"
	FinalizationUnconfirmed FinalizationStatus = "UNCONFIRMED"
	FinalizationNeedsReview FinalizationStatus = "NEEDS_REVIEW"
)

// Finalization journals one order-creation call so that a payment that
// went through without a confirmed order can be found later.
type Finalization struct {
	ID         uuid.UUID
	DraftID    uuid.UUID
	AttemptID  uuid.UUID
	SessionID  string
	BuyerID    string
	Method     PaymentMethod
	ProviderID *string
	Amount     decimal.Decimal
	Currency   string
	OrderID    *string
	Status     FinalizationStatus
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PaymentCaptured reports whether money moved before the order call.
func (f *Finalization) PaymentCaptured() bool {
	return f.Method != MethodPayOnDelivery
}
