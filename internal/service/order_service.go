package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"order-service/internal/auth"
	"order-service/internal/gateway"
	"order-service/internal/model"
	"order-service/internal/notifier"
	"order-service/internal/policy"
	"order-service/internal/repository"
	"order-service/prometheus"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options carries the business-level tunables for the order lifecycle
type Options struct {
	AcceptanceTimeout  time.Duration
	PickupWindow       time.Duration
	TaxRateBasisPoints int
}

// OrderService coordinates the order state machine, payment orchestration and
// tenant-scoped persistence. Every entry point takes the caller's
// SecurityContext explicitly; there is no ambient identity.
type OrderService struct {
	db       *gorm.DB
	orders   *repository.OrderRepository
	payments *repository.PaymentRepository
	outlets  *repository.OutletRepository
	policy   *policy.Engine
	gateway  gateway.PaymentGateway
	catalog  gateway.Catalog
	notifier notifier.Notifier
	log      *zap.Logger
	opts     Options

	// overridable clock for deadline tests
	now func() time.Time
}

// NewOrderService wires the order service
func NewOrderService(
	db *gorm.DB,
	policyEngine *policy.Engine,
	paymentGateway gateway.PaymentGateway,
	catalog gateway.Catalog,
	n notifier.Notifier,
	log *zap.Logger,
	opts Options,
) *OrderService {
	return &OrderService{
		db:       db,
		orders:   repository.NewOrderRepository(db),
		payments: repository.NewPaymentRepository(db),
		outlets:  repository.NewOutletRepository(db),
		policy:   policyEngine,
		gateway:  paymentGateway,
		catalog:  catalog,
		notifier: n,
		log:      log,
		opts:     opts,
		now:      time.Now,
	}
}

// CreateOrderItemInput is one requested line item
type CreateOrderItemInput struct {
	ItemID         uint  `json:"item_id"`
	Quantity       int   `json:"quantity"`
	UnitPriceCents int64 `json:"unit_price_cents"`
}

// CreateOrderInput is the order creation request
type CreateOrderInput struct {
	OutletID     uint                   `json:"outlet_id"`
	Items        []CreateOrderItemInput `json:"items"`
	PickupBy     *time.Time             `json:"pickup_by,omitempty"`
	Notes        string                 `json:"notes,omitempty"`
	PaymentToken string                 `json:"payment_token"`
}

func orderResource(action string, orderID uint) policy.Resource {
	return policy.Resource{
		Type:   "order",
		ID:     strconv.FormatUint(uint64(orderID), 10),
		Action: action,
	}
}

// CreateOrder checks availability, pre-authorizes funds for the total and
// persists the order as PENDING_OUTLET_ACCEPTANCE together with its payment.
// When pre-authorization fails, nothing persists.
func (s *OrderService) CreateOrder(ctx context.Context, sctx *auth.SecurityContext, in CreateOrderInput) (*model.Order, error) {
	if err := s.policy.RequireRole(sctx, auth.RoleCustomer); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", model.ErrItemUnavailable)
	}

	outlet, err := s.outlets.GetByID(ctx, in.OutletID)
	if err != nil {
		return nil, err
	}
	if !outlet.Active {
		return nil, model.ErrNotFound
	}

	now := s.now().UTC()

	// Snapshot line items; availability is checked once, here only
	items := make([]model.OrderItem, 0, len(in.Items))
	var subtotal int64
	for _, req := range in.Items {
		if req.Quantity <= 0 || req.UnitPriceCents < 0 {
			return nil, fmt.Errorf("%w: bad quantity or price for item %d", model.ErrItemUnavailable, req.ItemID)
		}
		available, err := s.catalog.CheckAvailability(ctx, req.ItemID, req.Quantity)
		if err != nil {
			return nil, fmt.Errorf("checking availability of item %d: %w", req.ItemID, err)
		}
		if !available {
			return nil, fmt.Errorf("%w: item %d", model.ErrItemUnavailable, req.ItemID)
		}
		catalogItem, err := s.catalog.GetItem(ctx, req.ItemID)
		if err != nil {
			return nil, fmt.Errorf("loading item %d: %w", req.ItemID, err)
		}
		items = append(items, model.OrderItem{
			ItemID:         req.ItemID,
			Name:           catalogItem.Name,
			UnitPriceCents: req.UnitPriceCents,
			Quantity:       req.Quantity,
		})
		subtotal += req.UnitPriceCents * int64(req.Quantity)
	}

	tax := subtotal * int64(s.opts.TaxRateBasisPoints) / 10000
	total := subtotal + tax

	pickupBy := now.Add(s.opts.PickupWindow)
	if in.PickupBy != nil {
		pickupBy = in.PickupBy.UTC()
	}

	// Pre-authorize strictly before anything persists
	idempotencyKey := uuid.New().String()
	preauth, err := s.gateway.Preauthorize(ctx, total, in.PaymentToken, idempotencyKey)
	prometheus.RecordPaymentOperation("preauthorize", err)
	if err != nil {
		s.log.Warn("Payment pre-authorization failed",
			zap.Uint("user_id", sctx.UserID()),
			zap.Int64("total_cents", total),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", model.ErrPaymentPreAuthFailed, err)
	}

	authorizedAt := now
	order := &model.Order{
		OrderNumber:        model.NewOrderNumber(now),
		UserID:             sctx.UserID(),
		OutletID:           outlet.ID,
		Status:             model.StatusPendingOutletAcceptance,
		SubtotalCents:      subtotal,
		TaxCents:           tax,
		TotalCents:         total,
		PickupCode:         model.NewPickupCode(),
		AcceptanceDeadline: now.Add(s.opts.AcceptanceTimeout),
		PickupBy:           pickupBy,
		Notes:              in.Notes,
		Items:              items,
	}
	payment := &model.Payment{
		Amount:            total,
		Status:            model.PaymentAuthorized,
		AuthorizationCode: preauth.AuthorizationCode,
		TransactionID:     preauth.TransactionID,
		IdempotencyKey:    idempotencyKey,
		AuthorizedAt:      &authorizedAt,
	}

	if err := s.orders.Create(ctx, order, payment); err != nil {
		return nil, fmt.Errorf("persisting order: %w", err)
	}

	prometheus.RecordTransition(string(model.StatusPendingOutletAcceptance))
	s.log.Info("Order created",
		zap.Uint("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Uint("outlet_id", order.OutletID),
		zap.Int64("total_cents", order.TotalCents))

	s.notifier.Notify(ctx, order.UserID, notifier.EventOrderCreated, order)
	return order, nil
}

// GetOrder loads one order visible to the caller's scope. Global-access
// reads are audited before the result is returned.
func (s *OrderService) GetOrder(ctx context.Context, sctx *auth.SecurityContext, orderID uint) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, sctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AuditGlobalAccess(ctx, sctx, orderResource("read", orderID)); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns the orders visible to the caller's scope
func (s *OrderService) ListOrders(ctx context.Context, sctx *auth.SecurityContext, limit, offset int) ([]model.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if err := s.policy.AuditGlobalAccess(ctx, sctx, policy.Resource{Type: "order", ID: "*", Action: "list"}); err != nil {
		return nil, err
	}
	return s.orders.List(ctx, sctx, limit, offset)
}

// AcceptOrder is the outlet accepting a pending order: capture the held
// funds, then advance PENDING_OUTLET_ACCEPTANCE -> PAID. The capture happens
// strictly before the transition write; order and payment rows commit in one
// transaction so a lost version race rolls both back.
func (s *OrderService) AcceptOrder(ctx context.Context, sctx *auth.SecurityContext, orderID uint) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, sctx, orderID)
	if err != nil {
		return nil, err
	}
	outlet, err := s.outlets.GetByID(ctx, order.OutletID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireOutletAccess(ctx, sctx, outlet.ID, outlet.MerchantID, orderResource("accept", orderID)); err != nil {
		return nil, err
	}
	if order.Status != model.StatusPendingOutletAcceptance {
		prometheus.TransitionRejectionCounter.WithLabelValues("invalid_transition").Inc()
		return nil, model.ErrInvalidStateTransition
	}
	// A request arriving after the deadline silently passed must refuse the
	// transition itself instead of relying on the scheduler
	if s.now().After(order.AcceptanceDeadline) {
		prometheus.TransitionRejectionCounter.WithLabelValues("deadline_passed").Inc()
		return nil, fmt.Errorf("%w: acceptance deadline passed", model.ErrInvalidStateTransition)
	}

	payment, err := s.payments.GetByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	captured, err := s.capturePayment(ctx, payment)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Transition(ctx, order, model.StatusPaid, nil); err != nil {
			return err
		}
		return s.payments.WithTx(tx).Transition(ctx, payment, model.PaymentCaptured, map[string]interface{}{
			"capture_code": captured.CaptureCode,
		})
	})
	if err != nil {
		// The gateway capture is idempotent on its key; a retried accept
		// reuses it without moving funds twice
		s.recordTransitionFailure(err)
		return nil, err
	}
	payment.CaptureCode = captured.CaptureCode

	prometheus.RecordTransition(string(model.StatusPaid))
	s.log.Info("Order accepted", zap.Uint("order_id", order.ID), zap.Int64("version", order.Version))
	s.notifier.Notify(ctx, order.UserID, notifier.EventOrderAccepted, order)
	return order, nil
}

// DeclineOrder is the outlet declining a pending order. The void of the held
// funds runs after the terminal transition commits; a void failure is retried
// by the scheduler.
func (s *OrderService) DeclineOrder(ctx context.Context, sctx *auth.SecurityContext, orderID uint, reason string) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, sctx, orderID)
	if err != nil {
		return nil, err
	}
	outlet, err := s.outlets.GetByID(ctx, order.OutletID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireOutletAccess(ctx, sctx, outlet.ID, outlet.MerchantID, orderResource("decline", orderID)); err != nil {
		return nil, err
	}
	if order.Status != model.StatusPendingOutletAcceptance {
		prometheus.TransitionRejectionCounter.WithLabelValues("invalid_transition").Inc()
		return nil, model.ErrInvalidStateTransition
	}

	if err := s.orders.Transition(ctx, order, model.StatusDeclined, map[string]interface{}{
		"decline_reason": reason,
	}); err != nil {
		s.recordTransitionFailure(err)
		return nil, err
	}
	order.DeclineReason = reason

	prometheus.RecordTransition(string(model.StatusDeclined))
	s.voidAfterTerminal(ctx, order)
	s.notifier.Notify(ctx, order.UserID, notifier.EventOrderDeclined, order)
	return order, nil
}

// CancelOrder is the customer cancelling their own order while it is still
// pending acceptance
func (s *OrderService) CancelOrder(ctx context.Context, sctx *auth.SecurityContext, orderID uint, reason string) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, sctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireUserAccess(ctx, sctx, order.UserID, orderResource("cancel", orderID)); err != nil {
		return nil, err
	}
	if order.Status != model.StatusCreated && order.Status != model.StatusPendingOutletAcceptance {
		prometheus.TransitionRejectionCounter.WithLabelValues("invalid_transition").Inc()
		return nil, model.ErrInvalidStateTransition
	}

	if err := s.orders.Transition(ctx, order, model.StatusCancelled, map[string]interface{}{
		"cancel_reason": reason,
	}); err != nil {
		s.recordTransitionFailure(err)
		return nil, err
	}
	order.CancelReason = reason

	prometheus.RecordTransition(string(model.StatusCancelled))
	s.voidAfterTerminal(ctx, order)
	return order, nil
}

// StartPreparing advances PAID -> PREPARING
func (s *OrderService) StartPreparing(ctx context.Context, sctx *auth.SecurityContext, orderID uint) (*model.Order, error) {
	return s.outletTransition(ctx, sctx, orderID, "prepare", model.StatusPreparing)
}

// MarkReady advances PREPARING -> READY_FOR_PICKUP and notifies the customer
func (s *OrderService) MarkReady(ctx context.Context, sctx *auth.SecurityContext, orderID uint) (*model.Order, error) {
	order, err := s.outletTransition(ctx, sctx, orderID, "ready", model.StatusReadyForPickup)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, order.UserID, notifier.EventOrderReady, order)
	return order, nil
}

// VerifyPickup checks the supplied code against the stored pickup code and
// advances READY_FOR_PICKUP -> PICKED_UP. The match is exact and
// case-sensitive.
func (s *OrderService) VerifyPickup(ctx context.Context, sctx *auth.SecurityContext, orderID uint, code string) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, sctx, orderID)
	if err != nil {
		return nil, err
	}
	outlet, err := s.outlets.GetByID(ctx, order.OutletID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireOutletAccess(ctx, sctx, outlet.ID, outlet.MerchantID, orderResource("pickup", orderID)); err != nil {
		return nil, err
	}

	switch order.Status {
	case model.StatusPickedUp, model.StatusCompleted:
		prometheus.TransitionRejectionCounter.WithLabelValues("already_picked_up").Inc()
		return nil, model.ErrOrderAlreadyPickedUp
	case model.StatusReadyForPickup:
		// proceed
	default:
		prometheus.TransitionRejectionCounter.WithLabelValues("invalid_transition").Inc()
		return nil, model.ErrInvalidStateTransition
	}
	if s.now().After(order.PickupBy) {
		prometheus.TransitionRejectionCounter.WithLabelValues("deadline_passed").Inc()
		return nil, fmt.Errorf("%w: pickup window passed", model.ErrInvalidStateTransition)
	}
	if code != order.PickupCode {
		prometheus.TransitionRejectionCounter.WithLabelValues("invalid_pickup_code").Inc()
		return nil, model.ErrInvalidPickupCode
	}

	if err := s.orders.Transition(ctx, order, model.StatusPickedUp, nil); err != nil {
		s.recordTransitionFailure(err)
		return nil, err
	}

	prometheus.RecordTransition(string(model.StatusPickedUp))
	s.notifier.Notify(ctx, order.UserID, notifier.EventOrderPickedUp, order)
	return order, nil
}

// CompleteOrder advances PICKED_UP -> COMPLETED
func (s *OrderService) CompleteOrder(ctx context.Context, sctx *auth.SecurityContext, orderID uint) (*model.Order, error) {
	return s.outletTransition(ctx, sctx, orderID, "complete", model.StatusCompleted)
}

// AddReview records the post-completion rating and review, the only mutation
// allowed on a terminal order
func (s *OrderService) AddReview(ctx context.Context, sctx *auth.SecurityContext, orderID uint, rating int, review string) (*model.Order, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", model.ErrInvalidStateTransition)
	}
	order, err := s.orders.GetByID(ctx, sctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireUserAccess(ctx, sctx, order.UserID, orderResource("review", orderID)); err != nil {
		return nil, err
	}
	if order.Status != model.StatusCompleted {
		return nil, model.ErrInvalidStateTransition
	}
	if err := s.orders.UpdateReview(ctx, order, rating, review); err != nil {
		s.recordTransitionFailure(err)
		return nil, err
	}
	return order, nil
}

// outletTransition is the shared path for simple outlet-driven forward moves
func (s *OrderService) outletTransition(ctx context.Context, sctx *auth.SecurityContext, orderID uint, action string, to model.OrderStatus) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, sctx, orderID)
	if err != nil {
		return nil, err
	}
	outlet, err := s.outlets.GetByID(ctx, order.OutletID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireOutletAccess(ctx, sctx, outlet.ID, outlet.MerchantID, orderResource(action, orderID)); err != nil {
		return nil, err
	}
	if err := s.orders.Transition(ctx, order, to, nil); err != nil {
		s.recordTransitionFailure(err)
		return nil, err
	}
	prometheus.RecordTransition(string(to))
	s.log.Info("Order transitioned",
		zap.Uint("order_id", order.ID),
		zap.String("status", string(to)),
		zap.Int64("version", order.Version))
	return order, nil
}

func (s *OrderService) recordTransitionFailure(err error) {
	switch {
	case err == nil:
		return
	case isConcurrentModification(err):
		prometheus.TransitionRejectionCounter.WithLabelValues("version_conflict").Inc()
	default:
		prometheus.TransitionRejectionCounter.WithLabelValues("invalid_transition").Inc()
	}
}
