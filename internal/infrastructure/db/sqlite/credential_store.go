// Package sqlite is the default credential store, backed by a pure-Go SQLite
// driver so the gateway runs without any external database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/greatway/greatway/internal/core/domain"
)

const defaultAcquireTimeout = 5 * time.Second

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

// Config captures the settings for opening the database file.
type Config struct {
	Path           string
	MaxConns       int
	AcquireTimeout time.Duration
}

// CredentialStore implements ports.CredentialStore on SQLite.
type CredentialStore struct {
	db             *sql.DB
	acquireTimeout time.Duration
}

// Open opens (creating if needed) the database at cfg.Path and applies the
// schema.
func Open(ctx context.Context, cfg Config) (*CredentialStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}

	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = defaultAcquireTimeout
	}
	s := &CredentialStore{db: db, acquireTimeout: timeout}

	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := db.ExecContext(initCtx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return s, nil
}

// Create inserts the user row and its role rows in one transaction.
func (s *CredentialStore) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin create user", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash) VALUES (?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrUserExists
		}
		return nil, storeErr("insert user", err)
	}
	for _, role := range user.Roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?)`, user.ID, string(role),
		); err != nil {
			return nil, storeErr("insert role", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit create user", err)
	}

	created := *user
	created.Roles = append([]domain.Role(nil), user.Roles...)
	return &created, nil
}

func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, storeErr("find user", err)
	}
	return &u, nil
}

// AddRole relies on the (user_id, role) primary key: a repeated grant is ignored.
func (s *CredentialStore) AddRole(ctx context.Context, userID string, role domain.Role) error {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?)`, userID, string(role),
	); err != nil {
		return storeErr("add role", err)
	}
	return nil
}

func (s *CredentialStore) Roles(ctx context.Context, userID string) ([]domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`, userID)
	if err != nil {
		return nil, storeErr("list roles", err)
	}
	defer rows.Close()

	roles := []domain.Role{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, storeErr("scan role", err)
		}
		role, err := domain.ParseRole(tag)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list roles", err)
	}
	return roles, nil
}

func (s *CredentialStore) CountUsers(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, storeErr("count users", err)
	}
	return n, nil
}

func (s *CredentialStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *CredentialStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var se *sqlitedriver.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// storeErr marks pool-acquisition timeouts as ErrStoreUnavailable.
func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
