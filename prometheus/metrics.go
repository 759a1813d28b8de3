package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// HTTP request duration histogram
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// Order transition counter by target status
	OrderTransitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Total number of order state transitions by target status",
		},
		[]string{"status"},
	)

	// Rejected transition counter by reason
	TransitionRejectionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transition_rejections_total",
			Help: "Total number of rejected order transitions",
		},
		[]string{"reason"}, // "invalid_transition", "version_conflict", "invalid_pickup_code", ...
	)

	// Payment gateway operation counter
	PaymentOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_payment_operations_total",
			Help: "Total number of payment gateway operations",
		},
		[]string{"operation", "outcome"}, // operation: "preauthorize", "capture", "void", "refund"
	)

	// Policy denial counter
	PolicyDenialCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_policy_denials_total",
			Help: "Total number of policy engine denials",
		},
		[]string{"type"}, // "insufficient_role", "access_denied"
	)

	// Auth error counter
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"},
	)

	// Scheduler run counter by job and outcome
	SchedulerRunCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_scheduler_runs_total",
			Help: "Total number of scheduler job runs",
		},
		[]string{"job", "outcome"}, // outcome: "ok", "skipped", "error"
	)

	// Expired order counter by job
	ExpiredOrderCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_expired_total",
			Help: "Total number of orders expired by the scheduler",
		},
		[]string{"job"},
	)

	// Audit record counter
	AuditRecordCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_audit_records_total",
			Help: "Total number of audit records written for global-access operations",
		},
	)
)

var registered bool

// InitMetrics registers all metrics with the prometheus registry
func InitMetrics() {
	if registered {
		return
	}
	prometheus.MustRegister(
		HTTPRequestCounter,
		HTTPRequestDuration,
		OrderTransitionCounter,
		TransitionRejectionCounter,
		PaymentOperationCounter,
		PolicyDenialCounter,
		AuthErrorCounter,
		SchedulerRunCounter,
		ExpiredOrderCounter,
		AuditRecordCounter,
	)
	registered = true
}

// RecordAuthError increments the auth error counter for the given type
func RecordAuthError(errorType string) {
	AuthErrorCounter.WithLabelValues(errorType).Inc()
}

// RecordPolicyDenial increments the policy denial counter for the given type
func RecordPolicyDenial(denialType string) {
	PolicyDenialCounter.WithLabelValues(denialType).Inc()
}

// RecordTransition increments the transition counter for the target status
func RecordTransition(status string) {
	OrderTransitionCounter.WithLabelValues(status).Inc()
}

// RecordPaymentOperation increments the payment operation counter
func RecordPaymentOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PaymentOperationCounter.WithLabelValues(operation, outcome).Inc()
}

// Middleware creates an Echo middleware that records HTTP request metrics
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			method := c.Request().Method
			path := c.Path()

			HTTPRequestCounter.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
			HTTPRequestDuration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// GetPrometheusHandler returns an HTTP handler for exposing Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}
