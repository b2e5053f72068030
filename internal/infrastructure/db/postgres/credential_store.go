package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greatway/greatway/internal/core/domain"
)

const (
	defaultAcquireTimeout = 5 * time.Second
	uniqueViolation       = "23505"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS user_roles (
	user_id TEXT NOT NULL REFERENCES users(id),
	role    TEXT NOT NULL CHECK (role IN ('Admin', 'User', 'Guest')),
	PRIMARY KEY (user_id, role)
);`

// Config holds pool settings for the Postgres credential store.
type Config struct {
	DSN            string
	MaxConns       int32
	AcquireTimeout time.Duration
}

// CredentialStore implements ports.CredentialStore on a pgx connection pool.
type CredentialStore struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// Connect builds the pool, verifies connectivity and applies the schema.
func Connect(ctx context.Context, cfg Config) (*CredentialStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = defaultAcquireTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(connectCtx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	return &CredentialStore{pool: pool, acquireTimeout: timeout}, nil
}

// Create inserts the user row and its role rows in one transaction.
func (s *CredentialStore) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storeErr("begin create user", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertUser = `
        INSERT INTO users (id, username, password_hash)
        VALUES ($1, $2, $3)`

	if _, err := tx.Exec(ctx, insertUser, user.ID, user.Username, user.PasswordHash); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrUserExists
		}
		return nil, storeErr("insert user", err)
	}

	const insertRole = `
        INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
        ON CONFLICT (user_id, role) DO NOTHING`

	for _, role := range user.Roles {
		if _, err := tx.Exec(ctx, insertRole, user.ID, string(role)); err != nil {
			return nil, storeErr("insert role", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit create user", err)
	}

	created := *user
	created.Roles = append([]domain.Role(nil), user.Roles...)
	return &created, nil
}

func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	const query = `SELECT id, username, password_hash FROM users WHERE username = $1`

	var u domain.User
	err := s.pool.QueryRow(ctx, query, username).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, storeErr("find user", err)
	}
	return &u, nil
}

func (s *CredentialStore) AddRole(ctx context.Context, userID string, role domain.Role) error {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	const query = `
        INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
        ON CONFLICT (user_id, role) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, userID, string(role)); err != nil {
		return storeErr("add role", err)
	}
	return nil
}

func (s *CredentialStore) Roles(ctx context.Context, userID string) ([]domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, storeErr("list roles", err)
	}
	tags, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeErr("list roles", err)
	}
	return parseRoles(tags)
}

func (s *CredentialStore) CountUsers(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, storeErr("count users", err)
	}
	return n, nil
}

func (s *CredentialStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Close releases pool resources.
func (s *CredentialStore) Close() error {
	s.pool.Close()
	return nil
}

func parseRoles(tags []string) ([]domain.Role, error) {
	roles := make([]domain.Role, 0, len(tags))
	for _, tag := range tags {
		role, err := domain.ParseRole(tag)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
