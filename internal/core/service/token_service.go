package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/greatway/greatway/internal/core/domain"
)

const defaultTokenTTL = time.Hour

// VerificationFailure classifies why a token was rejected.
type VerificationFailure string

const (
	FailureMalformed        VerificationFailure = "malformed"
	FailureSignatureInvalid VerificationFailure = "signature_invalid"
	FailureExpired          VerificationFailure = "expired"
)

// VerificationError is returned by TokenService.Verify. Callers only need to
// reject; Kind exists for logs and metrics.
type VerificationError struct {
	Kind VerificationFailure
	Err  error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// Is makes every VerificationError match domain.ErrUnauthenticated.
func (e *VerificationError) Is(target error) bool {
	return target == domain.ErrUnauthenticated
}

// tokenClaims is the JWT payload.
type tokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 bearer tokens with a single shared
// secret. There is no key rotation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for username carrying roles, valid for the configured TTL.
func (s *TokenService) Issue(username string, roles []domain.Role) (string, error) {
	now := s.now()
	tags := make([]string, 0, len(roles))
	for _, r := range roles {
		tags = append(tags, string(r))
	}

	claims := tokenClaims{
		Roles: tags,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded claims.
func (s *TokenService) Verify(token string) (*domain.Claims, error) {
	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, &VerificationError{Kind: classify(err), Err: err}
	}

	if tc.Subject == "" {
		return nil, &VerificationError{Kind: FailureMalformed, Err: errors.New("missing subject")}
	}

	roles := make([]domain.Role, 0, len(tc.Roles))
	for _, tag := range tc.Roles {
		r, err := domain.ParseRole(tag)
		if err != nil {
			return nil, &VerificationError{Kind: FailureMalformed, Err: err}
		}
		roles = append(roles, r)
	}

	return &domain.Claims{
		Subject:   tc.Subject,
		ExpiresAt: tc.ExpiresAt.Time,
		Roles:     roles,
	}, nil
}

// classify maps jwt parse errors onto the three failure kinds. Signature is
// checked before claims, so a forged expired token reports a bad signature.
func classify(err error) VerificationFailure {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return FailureSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return FailureExpired
	default:
		return FailureMalformed
	}
}
