package model

import "errors"

// Domain error taxonomy. Handlers map these to HTTP statuses with errors.Is;
// everything below the handler layer returns them unwrapped or wrapped with
// additional context.
var (
	// ErrInsufficientRole is returned when the caller's role sits below the
	// minimum required for the operation.
	ErrInsufficientRole = errors.New("insufficient role")

	// ErrAccessDenied is returned on an ownership mismatch.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound is returned when a record is absent or filtered out by the
	// caller's tenant scope. The two cases are deliberately indistinguishable
	// so out-of-scope resources do not leak their existence.
	ErrNotFound = errors.New("not found")

	// ErrInvalidStateTransition is returned for an order transition outside
	// the allowed transition table.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrConcurrentModification is returned when a conditional update lost a
	// version race. Callers re-read and decide whether to retry.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrInvalidPickupCode is returned when the supplied pickup code does not
	// match the stored one.
	ErrInvalidPickupCode = errors.New("invalid pickup code")

	// ErrOrderAlreadyPickedUp is returned when pickup is verified on an order
	// already at or past PICKED_UP.
	ErrOrderAlreadyPickedUp = errors.New("order already picked up")

	// ErrItemUnavailable is returned when the catalog reports insufficient
	// stock at order creation.
	ErrItemUnavailable = errors.New("item unavailable")

	// Payment gateway failures per operation. All leave the order in its
	// pre-transition state.
	ErrPaymentPreAuthFailed = errors.New("payment pre-authorization failed")
	ErrPaymentCaptureFailed = errors.New("payment capture failed")
	ErrPaymentVoidFailed    = errors.New("payment void failed")
	ErrPaymentRefundFailed  = errors.New("payment refund failed")

	// ErrAuditFailed is returned when the synchronous audit write for a
	// global-access operation fails; the operation itself must fail with it.
	ErrAuditFailed = errors.New("audit record write failed")
)
