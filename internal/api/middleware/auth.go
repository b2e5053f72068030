package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/greatway/greatway/internal/api/metrics"
	"github.com/greatway/greatway/internal/core/domain"
	"github.com/greatway/greatway/internal/core/ports"
	"github.com/greatway/greatway/internal/core/service"
)

const bearerScheme = "bearer"

// Authenticate verifies the bearer token and attaches its claims to the
// request context. Every failure returns domain.ErrUnauthenticated so the
// client cannot tell a bad signature from an expired token.
func Authenticate(verifier ports.TokenVerifier, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			token, ok := bearerToken(req.Header.Get(echo.HeaderAuthorization))
			if !ok {
				metrics.TokenVerificationFailuresTotal.WithLabelValues("missing").Inc()
				return fmt.Errorf("%w: missing bearer token", domain.ErrUnauthenticated)
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				reason := "malformed"
				var ve *service.VerificationError
				if errors.As(err, &ve) {
					reason = string(ve.Kind)
				}
				metrics.TokenVerificationFailuresTotal.WithLabelValues(reason).Inc()
				log.Debug().
					Str("reason", reason).
					Str("path", req.URL.Path).
					Msg("token rejected")
				return fmt.Errorf("%w: %s", domain.ErrUnauthenticated, reason)
			}

			c.SetRequest(req.WithContext(domain.ContextWithClaims(req.Context(), claims)))
			return next(c)
		}
	}
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
