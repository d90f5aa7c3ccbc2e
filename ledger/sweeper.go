package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-spar-server/internal/instrument"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const defaultSweepTimeout = time.Minute

// Sweeper periodically deletes ledger records whose expiry has passed. Expired
// records are already rejected by the gate, so sweeping only reclaims storage.
type Sweeper struct {
	repo     Repo
	schedule string
	timeout  time.Duration
	metrics  *instrument.Metrics

	mu   sync.Mutex
	cron *cron.Cron
}

type SweeperOption func(*Sweeper)

// WithSweepTimeout bounds a single sweep run.
func WithSweepTimeout(timeout time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.timeout = timeout
	}
}

func WithSweepMetrics(m *instrument.Metrics) SweeperOption {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// NewSweeper validates schedule, a robfig/cron spec such as "@every 1h".
func NewSweeper(repo Repo, schedule string, options ...SweeperOption) (*Sweeper, error) {
	if repo == nil {
		return nil, fmt.Errorf("[NewSweeper] ledger repo is required")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("[NewSweeper] invalid schedule %q: %w", schedule, err)
	}

	s := &Sweeper{
		repo:     repo,
		schedule: schedule,
		timeout:  defaultSweepTimeout,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Start schedules the sweep. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(s.schedule, s.run); err != nil {
		return fmt.Errorf("Sweeper.Start: %w", err)
	}
	c.Start()
	s.cron = c

	log.Info().Str("schedule", s.schedule).Msg("ledger sweeper started")
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep or ctx, whichever
// finishes first.
func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
		log.Info().Msg("ledger sweeper stopped")
	case <-ctx.Done():
		log.Warn().Msg("ledger sweeper stop timed out")
	}
}

// Sweep runs a single pass and returns the number of records deleted.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.SweepExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("Sweeper.Sweep: %w", err)
	}
	s.metrics.Swept(n)
	return n, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.Sweep(ctx)
	if err != nil {
		log.Err(err).Msg("scheduled ledger sweep failed")
		return
	}
	log.Debug().Int64("deleted", n).Msg("ledger sweep complete")
}
