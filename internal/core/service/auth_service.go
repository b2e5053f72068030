package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/greatway/greatway/internal/core/domain"
	"github.com/greatway/greatway/internal/core/ports"
)

// AuthService implements registration, login, role grants and the initial
// admin bootstrap on top of a CredentialStore.
type AuthService struct {
	store    ports.CredentialStore
	tokens   ports.TokenIssuer
	log      zerolog.Logger
	hashCost int
	// dummyHash is compared against when the username is unknown so that
	// both login failure paths do the same bcrypt work.
	dummyHash []byte
}

func NewAuthService(store ports.CredentialStore, tokens ports.TokenIssuer, log zerolog.Logger) *AuthService {
	return newAuthService(store, tokens, log, bcrypt.DefaultCost)
}

func newAuthService(store ports.CredentialStore, tokens ports.TokenIssuer, log zerolog.Logger, cost int) *AuthService {
	dummy, err := bcrypt.GenerateFromPassword([]byte("greatway-dummy-password"), cost)
	if err != nil {
		panic(fmt.Sprintf("auth: generate dummy hash: %v", err))
	}
	return &AuthService{store: store, tokens: tokens, log: log, hashCost: cost, dummyHash: dummy}
}

// Register creates a user holding DefaultRole.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.createUser(ctx, username, password, domain.DefaultRole)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("username", user.Username).Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Login checks the password and issues a token carrying the user's current
// roles. Unknown users and wrong passwords both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", domain.ErrInvalidCredentials
	}

	user, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", domain.ErrInvalidCredentials
	}

	roles, err := s.store.Roles(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("login: load roles: %w", err)
	}

	token, err := s.tokens.Issue(user.Username, roles)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return token, nil
}

// GrantRole assigns role to the named user. Re-granting is a no-op.
func (s *AuthService) GrantRole(ctx context.Context, username string, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("grant role: %w: %q", domain.ErrUnknownRole, role)
	}
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	if err := s.store.AddRole(ctx, user.ID, role); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	s.log.Info().Str("username", username).Str("role", string(role)).Msg("role granted")
	return nil
}

// RolesOf lists the roles currently assigned to the named user.
func (s *AuthService) RolesOf(ctx context.Context, username string) ([]domain.Role, error) {
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return s.store.Roles(ctx, user.ID)
}

// SeedAdmin creates the bootstrap admin when the store has no users at all.
// lock may be nil for single-instance deployments. It reports whether this
// call created the admin.
func (s *AuthService) SeedAdmin(ctx context.Context, username, password string, lock ports.SeedLock) (bool, error) {
	if lock != nil {
		acquired, release, err := lock.TryAcquire(ctx)
		if err != nil {
			return false, fmt.Errorf("seed admin: %w", err)
		}
		defer release()
		if !acquired {
			s.log.Info().Msg("another instance is seeding the admin user, skipping")
			return false, nil
		}
	}

	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("seed admin: count users: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	s.log.Info().Str("username", username).Msg("creating default admin user")
	_, err = s.createUser(ctx, username, password, domain.RoleAdmin)
	if errors.Is(err, domain.ErrUserExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	return true, nil
}

// createUser stores the user and its initial role in one store call, so a
// failure never leaves a user without a role.
func (s *AuthService) createUser(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: password longer than 72 bytes", domain.ErrInvalidRequest)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.store.Create(ctx, &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Roles:        []domain.Role{role},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
