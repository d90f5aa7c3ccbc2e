package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-spar-server/auth"
	"github.com/jrsteele09/go-spar-server/devices"
	devicerepo "github.com/jrsteele09/go-spar-server/devices/gormrepo"
	"github.com/jrsteele09/go-spar-server/internal/config"
	"github.com/jrsteele09/go-spar-server/internal/database"
	"github.com/jrsteele09/go-spar-server/internal/instrument"
	"github.com/jrsteele09/go-spar-server/ledger"
	ledgergormrepo "github.com/jrsteele09/go-spar-server/ledger/gormrepo"
	"github.com/jrsteele09/go-spar-server/ledger/redisrepo"
	"github.com/jrsteele09/go-spar-server/metrics"
	metricrepo "github.com/jrsteele09/go-spar-server/metrics/gormrepo"
	"github.com/jrsteele09/go-spar-server/server"
	"github.com/jrsteele09/go-spar-server/token"
	"github.com/jrsteele09/go-spar-server/users"
	userrepo "github.com/jrsteele09/go-spar-server/users/gormrepo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

func main() {
	c, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	configureLogging(c)

	for {
		if err := run(c); err != nil {
			log.Error().Err(err).Msg("error running server, restarting")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func configureLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname(c.GetAppName())

	ctx := context.Background()
	db, err := database.Open(ctx, c)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Err(err).Msg("failed to close database")
		}
	}()
	if err := database.Migrate(db); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	instruments := instrument.New(registry)

	ledgerRepo, closeLedger, err := newLedgerRepo(ctx, c, db)
	if err != nil {
		return err
	}
	defer closeLedger()

	services, err := newServices(c, db, ledgerRepo, instruments)
	if err != nil {
		return err
	}

	sweeper, err := startSweeper(c, ledgerRepo, instruments)
	if err != nil {
		return err
	}

	handler, err := server.New(c, services, registry)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	stop := waitForStopSignal()
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		returnError = err
	case <-stop:
		returnError = shutdown(httpServer)
	}

	if sweeper != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		sweeper.Stop(stopCtx)
		cancel()
	}
	return returnError
}

// newLedgerRepo picks the revocation store. The returned func releases any
// connection the ledger owns beyond the shared database.
func newLedgerRepo(ctx context.Context, c config.LedgerConfig, db *gorm.DB) (ledger.Repo, func(), error) {
	switch c.GetLedgerBackend() {
	case config.LedgerRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", c.GetRedisAddr(), err)
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("revocation ledger on redis")
		return redisrepo.NewLedgerRepo(client), func() {
			if err := client.Close(); err != nil {
				log.Err(err).Msg("failed to close redis client")
			}
		}, nil
	default:
		log.Info().Msg("revocation ledger on sql")
		return ledgergormrepo.NewLedgerRepo(db), func() {}, nil
	}
}

func newServices(c config.TokenConfig, db *gorm.DB, ledgerRepo ledger.Repo, instruments *instrument.Metrics) (server.Services, error) {
	signer, err := token.NewHMACSigner(c.GetSigningSecret())
	if err != nil {
		return server.Services{}, err
	}
	credentials, err := token.NewCredentials(signer, c)
	if err != nil {
		return server.Services{}, err
	}

	issuer, err := auth.NewSessionIssuer(credentials, ledgerRepo, auth.WithMetrics(instruments))
	if err != nil {
		return server.Services{}, err
	}
	gate, err := auth.NewGate(credentials, ledgerRepo, auth.WithMetrics(instruments))
	if err != nil {
		return server.Services{}, err
	}

	deviceService := devices.NewService(devicerepo.NewDeviceRepo(db))
	return server.Services{
		Directory: users.NewDirectory(userrepo.NewUserRepo(db)),
		Issuer:    issuer,
		Gate:      gate,
		Devices:   deviceService,
		Metrics:   metrics.NewService(metricrepo.NewMetricsRepo(db), deviceService),
	}, nil
}

// startSweeper returns nil when sweeping is disabled by an empty schedule.
func startSweeper(c config.LedgerConfig, ledgerRepo ledger.Repo, instruments *instrument.Metrics) (*ledger.Sweeper, error) {
	if c.GetSweepSchedule() == "" {
		log.Warn().Msg("ledger sweep disabled, expired records will accumulate")
		return nil, nil
	}
	sweeper, err := ledger.NewSweeper(ledgerRepo, c.GetSweepSchedule(), ledger.WithSweepMetrics(instruments))
	if err != nil {
		return nil, err
	}
	if err := sweeper.Start(); err != nil {
		return nil, err
	}
	return sweeper, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

// waitForStopSignal subscribes to interrupt and terminate. Callers release the
// channel with signal.Stop.
func waitForStopSignal() chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
