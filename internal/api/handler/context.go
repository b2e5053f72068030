package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/greatway/greatway/internal/core/domain"
)

// subjectOf returns the authenticated username, or "" when the request
// carries no claims.
func subjectOf(c echo.Context) string {
	claims, ok := domain.ClaimsFromContext(c.Request().Context())
	if !ok {
		return ""
	}
	return claims.Subject
}
