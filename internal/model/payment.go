package model

import (
	"time"

	"gorm.io/gorm"
)

// PaymentStatus enumerates the payment lifecycle states
type PaymentStatus string

const (
	PaymentAuthorized PaymentStatus = "AUTHORIZED"
	PaymentCaptured   PaymentStatus = "CAPTURED"
	PaymentVoided     PaymentStatus = "VOIDED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

// paymentTransitions mirrors the order's forward-only lifecycle: capture and
// void only from AUTHORIZED, refund only from CAPTURED. AUTHORIZED is the
// initial state; the pre-authorization runs before anything persists, so a
// payment row never exists without a held authorization.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentAuthorized: {PaymentCaptured, PaymentVoided},
	PaymentCaptured:   {PaymentRefunded},
}

// CanTransitionPayment reports whether from -> to is an allowed payment edge
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment is one-to-one with an Order and tracks the gateway-side money
// movement. IdempotencyKey is unique so a retried gateway call never
// re-authorizes or re-captures funds.
type Payment struct {
	ID      uint          `json:"id" gorm:"primaryKey"`
	OrderID uint          `json:"order_id" gorm:"uniqueIndex;not null"`
	Amount  int64         `json:"amount_cents" gorm:"not null"`
	Status  PaymentStatus `json:"status" gorm:"type:varchar(32);index;not null"`

	// Gateway correlation fields
	AuthorizationCode string `json:"-" gorm:"type:varchar(64)"`
	CaptureCode       string `json:"-" gorm:"type:varchar(64)"`
	TransactionID     string `json:"transaction_id,omitempty" gorm:"type:varchar(64)"`
	RefundID          string `json:"refund_id,omitempty" gorm:"type:varchar(64)"`

	IdempotencyKey string `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`

	AuthorizedAt *time.Time `json:"authorized_at,omitempty"`
	CapturedAt   *time.Time `json:"captured_at,omitempty"`
	VoidedAt     *time.Time `json:"voided_at,omitempty"`
	RefundedAt   *time.Time `json:"refunded_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
