package ports

import (
	"context"

	"github.com/greatway/greatway/internal/core/domain"
)

// CredentialStore persists users and their role assignments.
type CredentialStore interface {
	// Create inserts a new user together with user.Roles. Either both are
	// stored or neither is. It returns domain.ErrUserExists when the username
	// is taken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// FindByUsername returns domain.ErrUserNotFound for unknown usernames.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// AddRole grants role to the user. Granting a held role is a no-op.
	AddRole(ctx context.Context, userID string, role domain.Role) error
	Roles(ctx context.Context, userID string) ([]domain.Role, error)
	CountUsers(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// SeedLock serialises admin bootstrap across gateway instances.
type SeedLock interface {
	// TryAcquire reports whether the caller now holds the lock. release is
	// always safe to call.
	TryAcquire(ctx context.Context) (acquired bool, release func(), err error)
}
