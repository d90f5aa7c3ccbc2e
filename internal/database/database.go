// Package database opens the gorm connection shared by the SQL repositories.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"github.com/jrsteele09/go-spar-server/devices"
	"github.com/jrsteele09/go-spar-server/internal/config"
	"github.com/jrsteele09/go-spar-server/ledger"
	"github.com/jrsteele09/go-spar-server/metrics"
	"github.com/jrsteele09/go-spar-server/users"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultConnectTimeout = 30 * time.Second
	maxIdleConns          = 5
	maxOpenConns          = 25
)

type openConfig struct {
	connectTimeout time.Duration
	logLevel       logger.LogLevel
}

type Option func(*openConfig)

// WithConnectTimeout caps the total time spent retrying the initial connection.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *openConfig) {
		c.connectTimeout = timeout
	}
}

func WithLogLevel(level logger.LogLevel) Option {
	return func(c *openConfig) {
		c.logLevel = level
	}
}

// Open connects to the configured database, retrying with exponential backoff
// until the connect timeout elapses.
func Open(ctx context.Context, settings config.StorageConfig, options ...Option) (*gorm.DB, error) {
	oc := openConfig{
		connectTimeout: defaultConnectTimeout,
		logLevel:       logger.Warn,
	}
	for _, opt := range options {
		opt(&oc)
	}

	dialector, err := dialectorFor(settings)
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(oc.logLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = oc.connectTimeout

	var db *gorm.DB
	attempt := 0
	operation := func() error {
		attempt++
		opened, err := gorm.Open(dialector, gormConfig)
		if err != nil {
			return err
		}
		sqlDB, err := opened.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return err
		}
		db = opened
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("database not ready")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(expo, ctx), notify); err != nil {
		return nil, fmt.Errorf("database.Open %s: %w", settings.GetDatabaseDriver(), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database.Open: %w", err)
	}
	if settings.GetDatabaseDriver() == config.DriverSQLite {
		// SQLite allows one writer. A single pooled connection queues writers
		// in the pool instead of failing them with SQLITE_BUSY.
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(maxIdleConns)
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}

	log.Info().Str("driver", settings.GetDatabaseDriver()).Int("attempts", attempt).Msg("database connected")
	return db, nil
}

func dialectorFor(settings config.StorageConfig) (gorm.Dialector, error) {
	switch settings.GetDatabaseDriver() {
	case config.DriverPostgres:
		return postgres.Open(settings.GetDatabaseURL()), nil
	case config.DriverSQLite:
		return sqlite.Open(sqliteDSN(settings.GetDatabaseURL())), nil
	default:
		return nil, fmt.Errorf("database.Open: unsupported driver %q", settings.GetDatabaseDriver())
	}
}

// sqliteDSN adds a busy timeout and, for file databases, WAL journaling
// unless the URL already sets them.
func sqliteDSN(url string) string {
	var pragmas []string
	if !strings.Contains(url, "busy_timeout") {
		pragmas = append(pragmas, "_pragma=busy_timeout(5000)")
	}
	inMemory := strings.Contains(url, ":memory:") || strings.Contains(url, "mode=memory")
	if !inMemory && !strings.Contains(url, "journal_mode") {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	if len(pragmas) == 0 {
		return url
	}

	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + strings.Join(pragmas, "&")
}

// Migrate creates or updates every table the server owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&users.User{},
		&ledger.Record{},
		&devices.Device{},
		&metrics.BatteryInfo{},
		&metrics.CPUUsage{},
		&metrics.RAMUsage{},
		&metrics.DiskIO{},
		&metrics.DiskUsage{},
		&metrics.ProcessStatus{},
	)
	if err != nil {
		return fmt.Errorf("database.Migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
