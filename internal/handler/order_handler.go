package handler

import (
	"errors"
	"net/http"
	"strconv"

	"order-service/internal/auth"
	"order-service/internal/middleware"
	"order-service/internal/model"
	"order-service/internal/service"
	"order-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var orderService *service.OrderService

// Init wires the handlers to the order service
func Init(svc *service.OrderService) {
	orderService = svc
}

// orderView is the outbound order representation. The pickup code is
// disclosed only to the owning customer; outlet staff verify the code the
// customer presents and must not be able to read it out of the order.
type orderView struct {
	*model.Order
	PickupCode string `json:"pickup_code,omitempty"`
}

func newOrderView(order *model.Order, sctx *auth.SecurityContext) orderView {
	v := orderView{Order: order}
	if sctx.UserID() == order.UserID {
		v.PickupCode = order.PickupCode
	}
	return v
}

// CreateOrder handles order creation
func CreateOrder(c echo.Context) error {
	log := logger.FromContext(c)

	sctx, ok := middleware.SecurityContextFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req service.CreateOrderInput
	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse order creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.OutletID == 0 || len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "outlet_id and items are required"})
	}

	order, err := orderService.CreateOrder(c.Request().Context(), sctx, req)
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(http.StatusCreated, newOrderView(order, sctx))
}

// GetOrder retrieves a single order within the caller's scope
func GetOrder(c echo.Context) error {
	sctx, ok := middleware.SecurityContextFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := orderID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order ID"})
	}

	order, err := orderService.GetOrder(c.Request().Context(), sctx, id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, newOrderView(order, sctx))
}

// ListOrders retrieves the orders visible to the caller's scope
func ListOrders(c echo.Context) error {
	sctx, ok := middleware.SecurityContextFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	orders, err := orderService.ListOrders(c.Request().Context(), sctx, limit, offset)
	if err != nil {
		return domainError(c, err)
	}
	views := make([]orderView, len(orders))
	for i := range orders {
		views[i] = newOrderView(&orders[i], sctx)
	}
	return c.JSON(http.StatusOK, views)
}

// AcceptOrder handles the outlet accepting a pending order
func AcceptOrder(c echo.Context) error {
	return transition(c, func(sctx authContext, id uint) (*model.Order, error) {
		return orderService.AcceptOrder(c.Request().Context(), sctx, id)
	})
}

// DeclineOrder handles the outlet declining a pending order
func DeclineOrder(c echo.Context) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	return transition(c, func(sctx authContext, id uint) (*model.Order, error) {
		return orderService.DeclineOrder(c.Request().Context(), sctx, id, req.Reason)
	})
}

// CancelOrder handles the customer cancelling their pending order
func CancelOrder(c echo.Context) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	return transition(c, func(sctx authContext, id uint) (*model.Order, error) {
		return orderService.CancelOrder(c.Request().Context(), sctx, id, req.Reason)
	})
}

// StartPreparing advances a paid order to PREPARING
func StartPreparing(c echo.Context) error {
	return transition(c, func(sctx authContext, id uint) (*model.Order, error) {
		return orderService.StartPreparing(c.Request().Context(), sctx, id)
	})
}

// MarkReady advances a preparing order to READY_FOR_PICKUP
func MarkReady(c echo.Context) error {
	return transition(c, func(sctx authContext, id uint) (*model.Order, error) {
		return orderService.MarkReady(c.Request().Context(), sctx, id)
	})
}

// VerifyPickup verifies the pickup code and hands the order over
func VerifyPickup(c echo.Context) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "pickup code is required"})
	}
	return transition(c, func(sctx authContext, id uint) (*model.Order, error) {
		return orderService.VerifyPickup(c.Request().Context(), sctx, id, req.Code)
	})
}

// CompleteOrder advances a picked-up order to COMPLETED
func CompleteOrder(c echo.Context) error {
	return transition(c, func(sctx authContext, id uint) (*model.Order, error) {
		return orderService.CompleteOrder(c.Request().Context(), sctx, id)
	})
}

// RefundOrder runs the explicit cancellation-after-pay refund flow
func RefundOrder(c echo.Context) error {
	return transition(c, func(sctx authContext, id uint) (*model.Order, error) {
		return orderService.RefundOrder(c.Request().Context(), sctx, id)
	})
}

// AddReview records the post-completion rating and review
func AddReview(c echo.Context) error {
	var req struct {
		Rating int    `json:"rating"`
		Review string `json:"review"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	return transition(c, func(sctx authContext, id uint) (*model.Order, error) {
		return orderService.AddReview(c.Request().Context(), sctx, id, req.Rating, req.Review)
	})
}

type authContext = *auth.SecurityContext

// transition factors the shared id-parse / auth / error-mapping path of the
// transition endpoints
func transition(c echo.Context, op func(sctx authContext, id uint) (*model.Order, error)) error {
	sctx, ok := middleware.SecurityContextFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := orderID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order ID"})
	}

	order, err := op(sctx, id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, newOrderView(order, sctx))
}

func orderID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	return uint(id), err
}

// domainError maps the domain error taxonomy onto HTTP statuses
func domainError(c echo.Context, err error) error {
	log := logger.FromContext(c)

	switch {
	case errors.Is(err, model.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	case errors.Is(err, model.ErrInsufficientRole), errors.Is(err, model.ErrAccessDenied):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	case errors.Is(err, model.ErrInvalidPickupCode):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pickup code"})
	case errors.Is(err, model.ErrOrderAlreadyPickedUp):
		return c.JSON(http.StatusConflict, echo.Map{"error": "order already picked up"})
	case errors.Is(err, model.ErrInvalidStateTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrConcurrentModification):
		return c.JSON(http.StatusConflict, echo.Map{"error": "order was modified concurrently, retry with fresh state"})
	case errors.Is(err, model.ErrItemUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrPaymentPreAuthFailed):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment pre-authorization failed"})
	case errors.Is(err, model.ErrPaymentCaptureFailed),
		errors.Is(err, model.ErrPaymentVoidFailed),
		errors.Is(err, model.ErrPaymentRefundFailed):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway failure, retry later"})
	default:
		log.Error("Unhandled error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
