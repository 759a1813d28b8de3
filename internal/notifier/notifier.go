package notifier

import "context"

// Notifier delivers customer-facing order events. Fire-and-forget: failures
// are logged, never propagated, and never block an order-state commit.
type Notifier interface {
	Notify(ctx context.Context, userID uint, eventType string, payload interface{})
}

// Event types published on order transitions
const (
	EventOrderCreated  = "order.created"
	EventOrderAccepted = "order.accepted"
	EventOrderDeclined = "order.declined"
	EventOrderReady    = "order.ready"
	EventOrderPickedUp = "order.picked_up"
	EventOrderExpired  = "order.expired"
	EventOrderRefunded = "order.refunded"
)
