package repository

import (
	"context"
	"errors"
	"time"

	"order-service/internal/auth"
	"order-service/internal/model"

	"gorm.io/gorm"
)

// OrderRepository persists orders and applies the tenant filter on every read
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository on the given database
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Create persists a new order with its line items in one transaction
func (r *OrderRepository) Create(ctx context.Context, order *model.Order, payment *model.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		payment.OrderID = order.ID
		return tx.Create(payment).Error
	})
}

// GetByID loads an order visible to the caller's scope, with line items.
// Out-of-scope and absent orders both return ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, sctx *auth.SecurityContext, id uint) (*model.Order, error) {
	var order model.Order
	query := scopedOrders(r.db.WithContext(ctx).Model(&model.Order{}), r.db, sctx)
	err := query.Preload("Items").Where("orders.id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// List returns the orders visible to the caller's scope, newest first
func (r *OrderRepository) List(ctx context.Context, sctx *auth.SecurityContext, limit, offset int) ([]model.Order, error) {
	var orders []model.Order
	query := scopedOrders(r.db.WithContext(ctx).Model(&model.Order{}), r.db, sctx)
	err := query.Order("orders.created_at DESC").Limit(limit).Offset(offset).Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Transition advances an order to the given status through a single
// conditional update keyed on (id, expected version). It validates the edge
// against the transition table before touching storage, stamps the matching
// timestamp column and increments the version. A lost version race returns
// ErrConcurrentModification; the in-memory order is updated only on success.
func (r *OrderRepository) Transition(ctx context.Context, order *model.Order, to model.OrderStatus, extra map[string]interface{}) error {
	if !model.CanTransition(order.Status, to) {
		return model.ErrInvalidStateTransition
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":     to,
		"version":    order.Version + 1,
		"updated_at": now,
	}
	if col := model.TimestampColumn(to); col != "" {
		updates[col] = now
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish a version race from a vanished row
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Order{}).
			Where("id = ?", order.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return model.ErrNotFound
		}
		return model.ErrConcurrentModification
	}

	order.Status = to
	order.Version++
	if col := model.TimestampColumn(to); col != "" {
		setTimestampField(order, to, now)
	}
	return nil
}

// setTimestampField mirrors the stamped column on the in-memory order
func setTimestampField(order *model.Order, status model.OrderStatus, at time.Time) {
	switch status {
	case model.StatusPaid:
		order.AcceptedAt = &at
	case model.StatusDeclined:
		order.DeclinedAt = &at
	case model.StatusPreparing:
		order.PreparingAt = &at
	case model.StatusReadyForPickup:
		order.ReadyAt = &at
	case model.StatusPickedUp:
		order.PickedUpAt = &at
	case model.StatusCompleted:
		order.CompletedAt = &at
	case model.StatusCancelled:
		order.CancelledAt = &at
	case model.StatusExpired:
		order.ExpiredAt = &at
	case model.StatusRefunded:
		order.RefundedAt = &at
	}
}

// UpdateReview sets the rating and review on a terminal order. The review
// fields are the only mutable fields once an order is terminal.
func (r *OrderRepository) UpdateReview(ctx context.Context, order *model.Order, rating int, review string) error {
	if !order.Status.IsTerminal() {
		return model.ErrInvalidStateTransition
	}
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]interface{}{
			"rating":  rating,
			"review":  review,
			"version": order.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrConcurrentModification
	}
	order.Rating = &rating
	order.Review = review
	order.Version++
	return nil
}

// FindAcceptanceExpired returns orders still pending acceptance whose
// deadline has passed. Unscoped: the scheduler runs with no caller context.
func (r *OrderRepository) FindAcceptanceExpired(ctx context.Context, now time.Time, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND acceptance_deadline < ?", model.StatusPendingOutletAcceptance, now).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// FindPickupExpired returns ready-for-pickup orders whose pickup window has
// passed
func (r *OrderRepository) FindPickupExpired(ctx context.Context, now time.Time, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND pickup_by < ?", model.StatusReadyForPickup, now).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
