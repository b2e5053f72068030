package ports

import (
	"context"

	"github.com/greatway/greatway/internal/core/domain"
)

type AuthService interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, error)
}

// TokenVerifier is the read side of the token service used on every
// protected request.
type TokenVerifier interface {
	Verify(token string) (*domain.Claims, error)
}

type TokenIssuer interface {
	Issue(username string, roles []domain.Role) (string, error)
}
