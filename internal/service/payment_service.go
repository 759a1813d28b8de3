package service

import (
	"context"
	"errors"
	"fmt"

	"order-service/internal/auth"
	"order-service/internal/gateway"
	"order-service/internal/model"
	"order-service/internal/notifier"
	"order-service/internal/repository"
	"order-service/prometheus"

	"go.uber.org/zap"
)

func isConcurrentModification(err error) bool {
	return errors.Is(err, model.ErrConcurrentModification)
}

// capturePayment captures a held authorization through the gateway. The
// idempotency key is derived from the payment's own key, so a retried accept
// cannot capture twice.
func (s *OrderService) capturePayment(ctx context.Context, payment *model.Payment) (*gateway.CaptureResult, error) {
	if payment.Status != model.PaymentAuthorized {
		return nil, fmt.Errorf("%w: payment is %s", model.ErrPaymentCaptureFailed, payment.Status)
	}
	result, err := s.gateway.Capture(ctx, payment.AuthorizationCode, payment.IdempotencyKey+":capture")
	prometheus.RecordPaymentOperation("capture", err)
	if err != nil {
		s.log.Warn("Payment capture failed",
			zap.Uint("order_id", payment.OrderID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", model.ErrPaymentCaptureFailed, err)
	}
	return result, nil
}

// voidAfterTerminal releases the held authorization once the order committed
// to a terminal state. A failure here never unwinds the terminal transition;
// it is logged and picked up by the scheduler's void retry pass.
func (s *OrderService) voidAfterTerminal(ctx context.Context, order *model.Order) {
	payment, err := s.payments.GetByOrderID(ctx, order.ID)
	if err != nil {
		s.log.Error("Failed to load payment for void",
			zap.Uint("order_id", order.ID), zap.Error(err))
		return
	}
	if err := s.voidPayment(ctx, payment); err != nil {
		s.log.Error("Failed to void authorization, leaving for retry",
			zap.Uint("order_id", order.ID), zap.Error(err))
	}
}

// voidPayment voids a held authorization and records the payment transition
func (s *OrderService) voidPayment(ctx context.Context, payment *model.Payment) error {
	if payment.Status != model.PaymentAuthorized {
		// Nothing held; an earlier void already landed
		return nil
	}
	err := s.gateway.Void(ctx, payment.AuthorizationCode, payment.IdempotencyKey+":void")
	prometheus.RecordPaymentOperation("void", err)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrPaymentVoidFailed, err)
	}
	return s.payments.Transition(ctx, payment, model.PaymentVoided, nil)
}

// RefundOrder is the explicit cancellation-after-pay flow: move the order to
// REFUNDED, then return the captured funds. The refund call runs after the
// terminal transition commits, and re-invoking the operation retries a refund
// that failed at the gateway.
func (s *OrderService) RefundOrder(ctx context.Context, sctx *auth.SecurityContext, orderID uint) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, sctx, orderID)
	if err != nil {
		return nil, err
	}
	outlet, err := s.outlets.GetByID(ctx, order.OutletID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireOutletAccess(ctx, sctx, outlet.ID, outlet.MerchantID, orderResource("refund", orderID)); err != nil {
		return nil, err
	}

	payment, err := s.payments.GetByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentCaptured {
		return nil, fmt.Errorf("%w: payment is %s", model.ErrPaymentRefundFailed, payment.Status)
	}

	if order.Status != model.StatusRefunded {
		if err := s.orders.Transition(ctx, order, model.StatusRefunded, nil); err != nil {
			s.recordTransitionFailure(err)
			return nil, err
		}
		prometheus.RecordTransition(string(model.StatusRefunded))
	}

	result, err := s.gateway.Refund(ctx, payment.CaptureCode, payment.Amount, payment.IdempotencyKey+":refund")
	prometheus.RecordPaymentOperation("refund", err)
	if err != nil {
		s.log.Error("Refund failed at gateway, order already REFUNDED; re-invoke to retry",
			zap.Uint("order_id", order.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", model.ErrPaymentRefundFailed, err)
	}
	if err := s.payments.Transition(ctx, payment, model.PaymentRefunded, map[string]interface{}{
		"refund_id": result.RefundID,
	}); err != nil {
		return nil, err
	}
	payment.RefundID = result.RefundID

	s.notifier.Notify(ctx, order.UserID, notifier.EventOrderRefunded, order)
	return order, nil
}

// ExpirePendingOrder moves an acceptance-expired order to EXPIRED and voids
// the held funds. Used by the scheduler; the version check is the guard
// against racing a concurrent accept or cancel.
func (s *OrderService) ExpirePendingOrder(ctx context.Context, order *model.Order) error {
	if err := s.orders.Transition(ctx, order, model.StatusExpired, nil); err != nil {
		s.recordTransitionFailure(err)
		return err
	}
	prometheus.RecordTransition(string(model.StatusExpired))
	s.voidAfterTerminal(ctx, order)
	s.notifier.Notify(ctx, order.UserID, notifier.EventOrderExpired, order)
	return nil
}

// ExpirePickupOrder moves a pickup-expired order to EXPIRED. The payment was
// already captured; no refund is triggered.
func (s *OrderService) ExpirePickupOrder(ctx context.Context, order *model.Order) error {
	if err := s.orders.Transition(ctx, order, model.StatusExpired, nil); err != nil {
		s.recordTransitionFailure(err)
		return err
	}
	prometheus.RecordTransition(string(model.StatusExpired))
	s.notifier.Notify(ctx, order.UserID, notifier.EventOrderExpired, order)
	return nil
}

// RetryVoid retries the void of an authorization whose order is already
// terminal
func (s *OrderService) RetryVoid(ctx context.Context, payment *model.Payment) error {
	return s.voidPayment(ctx, payment)
}

// Repositories used by the scheduler to scan for expired work
func (s *OrderService) Orders() *repository.OrderRepository     { return s.orders }
func (s *OrderService) Payments() *repository.PaymentRepository { return s.payments }
