package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"
)

const minSecretLength = 32

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	StorageConfig
	LedgerConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() []string
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

// TokenConfig is the signing material and lifetime handed to the signer and
// the session issuer. Both are fixed for the life of the process.
type TokenConfig interface {
	GetSigningSecret() []byte
	GetTokenTTL() time.Duration
}

type StorageConfig interface {
	GetDatabaseDriver() string
	GetDatabaseURL() string
}

type LedgerConfig interface {
	GetLedgerBackend() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetSweepSchedule() string
}

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Ledger backends
const (
	LedgerSQL   = "sql"
	LedgerRedis = "redis"
)

type mainConfig struct {
	EnvVars
	Cors
	Token
	Storage
	Ledger
}

// Load reads the process environment once and validates the result.
func Load() (Config, error) {
	var c mainConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c mainConfig) validate() error {
	var result *multierror.Error

	if len(c.Secret) < minSecretLength {
		result = multierror.Append(result, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.TTL < 0 {
		result = multierror.Append(result, fmt.Errorf("JWT_TTL must not be negative, got %s", c.TTL))
	}

	switch strings.ToLower(c.Driver) {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			result = multierror.Append(result, fmt.Errorf("DATABASE_URL is required for the %s driver", DriverPostgres))
		}
	case DriverSQLite:
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Driver))
	}

	switch strings.ToLower(c.Backend) {
	case LedgerSQL:
	case LedgerRedis:
		if c.RedisAddr == "" {
			result = multierror.Append(result, fmt.Errorf("REDIS_ADDR is required for the %s ledger", LedgerRedis))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported LEDGER_BACKEND %q", c.Backend))
	}

	return result.ErrorOrNil()
}
