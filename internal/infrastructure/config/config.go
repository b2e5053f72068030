package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	ListenAddress string `env:"GREATWAY_LISTEN_ADDRESS, default=0.0.0.0"`
	ListenPort    int    `env:"GREATWAY_LISTEN_PORT, default=3000"`

	JWTSecret string        `env:"JWT_SECRET, required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=1h"`

	// ForwardAddress is the upstream base URL every guarded request goes to.
	ForwardAddress string `env:"GATEWAY_FORWARD_ADDRESS, required"`

	AdminUsername string `env:"GREATWAY_ADMIN_USERNAME, required"`
	AdminPassword string `env:"GREATWAY_ADMIN_PASSWORD, required"`

	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`

	Store StoreConfig
	Redis RedisConfig
}

type StoreConfig struct {
	Driver         string        `env:"STORE_DRIVER, default=sqlite"`
	MaxConns       int           `env:"STORE_MAX_CONNS, default=10"`
	AcquireTimeout time.Duration `env:"STORE_ACQUIRE_TIMEOUT, default=5s"`

	SQLitePath  string `env:"SQLITE_PATH, default=users.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	MongoURI    string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	MongoDB     string `env:"MONGO_DB, default=greatway"`
}

// RedisConfig is optional; an empty Addr disables the admin seed lock.
type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB, default=0"`
}

// ConfigurationError is fatal: the process must not start.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.ListenAddress, fmt.Sprint(c.ListenPort))
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &ConfigurationError{Err: fmt.Errorf("load .env: %w", err)}
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration from lookuper and validates it.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if err := cfg.validate(); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	return &cfg, nil
}

// LoadStore reads only the credential store settings. Administrative
// commands use it so they do not need the gateway's secrets.
func LoadStore(ctx context.Context) (*StoreConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &ConfigurationError{Err: fmt.Errorf("load .env: %w", err)}
	}
	return LoadStoreFrom(ctx, envconfig.OsLookuper())
}

func LoadStoreFrom(ctx context.Context, lookuper envconfig.Lookuper) (*StoreConfig, error) {
	var sc StoreConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &sc, Lookuper: lookuper}); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if err := sc.validate(); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	return &sc, nil
}

func (c *Config) validate() error {
	// "required" only checks presence; an empty value is as bad as none.
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET: must not be blank")
	}
	if strings.TrimSpace(c.AdminUsername) == "" {
		return errors.New("GREATWAY_ADMIN_USERNAME: must not be blank")
	}
	if strings.TrimSpace(c.AdminPassword) == "" {
		return errors.New("GREATWAY_ADMIN_PASSWORD: must not be blank")
	}
	if len(c.AdminPassword) > maxPasswordBytes {
		return fmt.Errorf("GREATWAY_ADMIN_PASSWORD: longer than %d bytes", maxPasswordBytes)
	}

	u, err := url.Parse(c.ForwardAddress)
	if err != nil {
		return fmt.Errorf("GATEWAY_FORWARD_ADDRESS: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("GATEWAY_FORWARD_ADDRESS: %q is not an absolute http(s) URL", c.ForwardAddress)
	}

	if err := c.Store.validate(); err != nil {
		return err
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("GREATWAY_LISTEN_PORT: %d out of range", c.ListenPort)
	}
	return nil
}

func (sc *StoreConfig) validate() error {
	switch sc.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if sc.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN: required when STORE_DRIVER=postgres")
		}
	case DriverMongo:
	default:
		return fmt.Errorf("STORE_DRIVER: unsupported driver %q", sc.Driver)
	}
	if sc.MaxConns <= 0 {
		return fmt.Errorf("STORE_MAX_CONNS: must be positive, got %d", sc.MaxConns)
	}
	return nil
}
