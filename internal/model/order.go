package model

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"
)

// OrderStatus enumerates the order lifecycle states
type OrderStatus string

const (
	StatusCreated                 OrderStatus = "CREATED"
	StatusPendingOutletAcceptance OrderStatus = "PENDING_OUTLET_ACCEPTANCE"
	StatusPaid                    OrderStatus = "PAID"
	StatusPreparing               OrderStatus = "PREPARING"
	StatusReadyForPickup          OrderStatus = "READY_FOR_PICKUP"
	StatusPickedUp                OrderStatus = "PICKED_UP"
	StatusCompleted               OrderStatus = "COMPLETED"
	StatusDeclined                OrderStatus = "DECLINED"
	StatusCancelled               OrderStatus = "CANCELLED"
	StatusExpired                 OrderStatus = "EXPIRED"
	StatusRefunded                OrderStatus = "REFUNDED"
)

// transitions is the authoritative transition table. A status missing from the
// map is terminal. REFUNDED is reachable from the post-capture states through
// the explicit refund flow.
var transitions = map[OrderStatus][]OrderStatus{
	StatusCreated:                 {StatusPendingOutletAcceptance, StatusCancelled},
	StatusPendingOutletAcceptance: {StatusPaid, StatusDeclined, StatusExpired, StatusCancelled},
	StatusPaid:                    {StatusPreparing, StatusRefunded},
	StatusPreparing:               {StatusReadyForPickup, StatusRefunded},
	StatusReadyForPickup:          {StatusPickedUp, StatusExpired, StatusRefunded},
	StatusPickedUp:                {StatusCompleted},
}

// CanTransition reports whether from -> to is an allowed edge
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing edges
func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Order represents a surplus-food purchase brokered between a customer and an
// outlet. Owned by the customer (UserID) and the outlet (OutletID) for scoping.
// Status only ever advances along the transition table; a terminal order is
// immutable except for the review fields.
type Order struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	OrderNumber string      `json:"order_number" gorm:"type:varchar(32);uniqueIndex;not null"`
	UserID      uint        `json:"user_id" gorm:"index;not null"`
	OutletID    uint        `json:"outlet_id" gorm:"index;not null"`
	Status      OrderStatus `json:"status" gorm:"type:varchar(32);index;not null"`

	// Fixed-point currency in cents
	SubtotalCents int64 `json:"subtotal_cents" gorm:"not null"`
	TaxCents      int64 `json:"tax_cents" gorm:"not null"`
	TotalCents    int64 `json:"total_cents" gorm:"not null"`

	// Assigned once at creation, verified case-sensitively at pickup
	PickupCode string `json:"-" gorm:"type:varchar(6);index"`

	AcceptanceDeadline time.Time `json:"acceptance_deadline"`
	PickupBy           time.Time `json:"pickup_by"`
	Notes              string    `json:"notes,omitempty" gorm:"type:text"`

	// Transition timestamps, set exactly once by the transition that reaches
	// the corresponding state
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	DeclinedAt  *time.Time `json:"declined_at,omitempty"`
	PreparingAt *time.Time `json:"preparing_at,omitempty"`
	ReadyAt     *time.Time `json:"ready_at,omitempty"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`

	DeclineReason string `json:"decline_reason,omitempty" gorm:"type:text"`
	CancelReason  string `json:"cancel_reason,omitempty" gorm:"type:text"`

	// Monotonic counter for optimistic concurrency; every state change is a
	// conditional update on (id, version)
	Version int64 `json:"version" gorm:"not null;default:0"`

	// Post-completion review, the only mutable fields on a terminal order
	Rating *int   `json:"rating,omitempty"`
	Review string `json:"review,omitempty" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

// TimestampColumn returns the DB column recording when the given status was
// reached, empty for statuses without one
func TimestampColumn(status OrderStatus) string {
	switch status {
	case StatusPaid:
		return "accepted_at"
	case StatusDeclined:
		return "declined_at"
	case StatusPreparing:
		return "preparing_at"
	case StatusReadyForPickup:
		return "ready_at"
	case StatusPickedUp:
		return "picked_up_at"
	case StatusCompleted:
		return "completed_at"
	case StatusCancelled:
		return "cancelled_at"
	case StatusExpired:
		return "expired_at"
	case StatusRefunded:
		return "refunded_at"
	default:
		return ""
	}
}

// NewPickupCode generates a 6-digit pickup code
func NewPickupCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%06d", n.Int64())
}

// NewOrderNumber generates a human-readable unique order number
func NewOrderNumber(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("SO-%s-%06d", now.Format("20060102"), n.Int64())
}
