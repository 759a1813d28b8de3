package middleware

import (
	"net/http"
	"strings"

	"order-service/internal/auth"
	"order-service/pkg/jwtutil"
	"order-service/pkg/logger"
	"order-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const securityContextKey = "security_context"

// SecurityContextMiddleware validates the bearer token and builds the
// request's SecurityContext, exactly one per request. The context is
// installed in both the echo context and the request context, and torn down
// unconditionally when the request ends, error paths included. Anonymous
// callers are rejected here, before any policy check runs.
func SecurityContextMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			// Get the Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing Authorization header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}

			// Check if it's a Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Warn("Invalid Authorization header format")
				prometheus.RecordAuthError("invalid_auth_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			// Validate the token
			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid JWT token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			role, err := auth.ParseRole(claims.Role)
			if err != nil {
				log.Warn("Token carries unknown role", zap.String("role", claims.Role))
				prometheus.RecordAuthError("unknown_role")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			correlationID := c.Request().Header.Get("X-Request-ID")
			sctx := auth.NewSecurityContext(claims.UserID, role, claims.MerchantID, claims.OutletID, correlationID)

			// Install for this request only and clear on every exit path so
			// the context can never leak into another request
			c.Set(securityContextKey, sctx)
			c.SetRequest(c.Request().WithContext(auth.WithContext(c.Request().Context(), sctx)))
			defer c.Set(securityContextKey, nil)

			log.Debug("Request authenticated",
				zap.Uint("user_id", claims.UserID),
				zap.String("role", role.String()))

			return next(c)
		}
	}
}

// SecurityContextFrom retrieves the request's SecurityContext. The second
// return is false when the middleware did not run.
func SecurityContextFrom(c echo.Context) (*auth.SecurityContext, bool) {
	sctx, ok := c.Get(securityContextKey).(*auth.SecurityContext)
	if !ok || sctx == nil {
		return nil, false
	}
	return sctx, true
}
