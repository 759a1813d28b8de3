package repository

import (
	"context"
	"errors"
	"time"

	"order-service/internal/model"

	"gorm.io/gorm"
)

// PaymentRepository persists payments. Payments are never read through a
// tenant scope directly; access always goes through the owning order.
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a payment repository on the given database
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

// GetByOrderID loads the payment attached to an order
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID uint) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// Transition advances the payment to the given status, stamping the matching
// timestamp. The edge is validated against the payment transition table.
func (r *PaymentRepository) Transition(ctx context.Context, payment *model.Payment, to model.PaymentStatus, extra map[string]interface{}) error {
	if !model.CanTransitionPayment(payment.Status, to) {
		return model.ErrInvalidStateTransition
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	switch to {
	case model.PaymentAuthorized:
		updates["authorized_at"] = now
	case model.PaymentCaptured:
		updates["captured_at"] = now
	case model.PaymentVoided:
		updates["voided_at"] = now
	case model.PaymentRefunded:
		updates["refunded_at"] = now
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", payment.ID, payment.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrConcurrentModification
	}

	payment.Status = to
	return nil
}

// FindVoidable returns authorized payments whose order already reached a
// terminal state, so a previously failed void can be retried.
func (r *PaymentRepository) FindVoidable(ctx context.Context, limit int) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = payments.order_id").
		Where("payments.status = ?", model.PaymentAuthorized).
		Where("orders.status IN ?", []model.OrderStatus{
			model.StatusDeclined, model.StatusCancelled, model.StatusExpired,
		}).
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
