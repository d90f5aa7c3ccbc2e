package config

import "strings"

type Storage struct {
	Driver      string `envconfig:"DATABASE_DRIVER" default:"sqlite"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"file:spar.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetDatabaseDriver() string {
	return strings.ToLower(s.Driver)
}

func (s Storage) GetDatabaseURL() string {
	return s.DatabaseURL
}

type Ledger struct {
	Backend       string `envconfig:"LEDGER_BACKEND" default:"sql"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	SweepSchedule string `envconfig:"LEDGER_SWEEP_SCHEDULE" default:"@every 1h"`
}

var _ LedgerConfig = Ledger{}

func (l Ledger) GetLedgerBackend() string {
	return strings.ToLower(l.Backend)
}

func (l Ledger) GetRedisAddr() string {
	return l.RedisAddr
}

func (l Ledger) GetRedisPassword() string {
	return l.RedisPassword
}

func (l Ledger) GetRedisDB() int {
	return l.RedisDB
}

// GetSweepSchedule returns the cron spec for the expired-record sweep. An
// empty schedule disables the sweep.
func (l Ledger) GetSweepSchedule() string {
	return l.SweepSchedule
}
