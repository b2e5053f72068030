package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/greatway/greatway/internal/api/metrics"
	"github.com/greatway/greatway/internal/core/domain"
)

// RequireRoles admits a request only if its claims hold at least one of the
// required roles. It must run after Authenticate; a request without claims is
// rejected as unauthenticated rather than let through.
func RequireRoles(required ...domain.Role) echo.MiddlewareFunc {
	required = append([]domain.Role(nil), required...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := domain.ClaimsFromContext(c.Request().Context())
			if !ok {
				metrics.AuthorizationDenialsTotal.WithLabelValues("no_claims").Inc()
				return fmt.Errorf("%w: no claims on request", domain.ErrUnauthenticated)
			}
			if !domain.HasAnyRole(claims.Roles, required) {
				metrics.AuthorizationDenialsTotal.WithLabelValues("missing_role").Inc()
				return fmt.Errorf("%w: %s lacks %v", domain.ErrUnauthorized, claims.Subject, required)
			}
			return next(c)
		}
	}
}
