package auth

import (
	"context"
	"fmt"
	"time"

	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"github.com/jrsteele09/go-spar-server/internal/instrument"
	"github.com/jrsteele09/go-spar-server/ledger"
	"github.com/jrsteele09/go-spar-server/token"
	"github.com/rs/zerolog/log"
)

// Login results
const (
	loginOK                = "ok"
	loginConflict          = "conflict"
	loginLedgerUnavailable = "ledger_unavailable"
	loginError             = "error"
)

// Session is a freshly issued bearer token together with its claims.
type Session struct {
	Token      string
	Credential token.Credential
}

// SessionIssuer mints credentials for subjects that the account directory has
// already authenticated, and records each one in the ledger.
type SessionIssuer struct {
	credentials *token.Credentials
	ledger      ledger.Repo
	metrics     *instrument.Metrics
}

func NewSessionIssuer(credentials *token.Credentials, ledgerRepo ledger.Repo, opts ...Option) (*SessionIssuer, error) {
	if credentials == nil {
		return nil, fmt.Errorf("[NewSessionIssuer] credentials are required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("[NewSessionIssuer] ledger repo is required")
	}

	o := getOpts(opts...)
	return &SessionIssuer{
		credentials: credentials,
		ledger:      ledgerRepo,
		metrics:     o.metrics,
	}, nil
}

// Login issues a token for subject. The token is only returned once its ledger
// row is committed; on any failure it is dropped and never reaches the caller.
func (s *SessionIssuer) Login(ctx context.Context, subject string) (Session, error) {
	raw, credential, err := s.credentials.Issue(subject)
	if err != nil {
		s.metrics.Login(loginError)
		return Session{}, fmt.Errorf("SessionIssuer.Login: %w", err)
	}

	record := &ledger.Record{
		JTI:       credential.ID,
		Username:  credential.Subject,
		IssuedAt:  credential.IssuedAt,
		ExpiresAt: credential.ExpiresAt,
	}
	if err := s.ledger.Record(ctx, record); err != nil {
		switch {
		case autherrors.Is(err, autherrors.ErrConflict):
			s.metrics.Login(loginConflict)
			log.Error().Err(err).Str("subject", subject).Str("jti", credential.ID).Msg("token id collision, token discarded")
		case autherrors.Is(err, autherrors.ErrLedgerUnavailable):
			s.metrics.Login(loginLedgerUnavailable)
			log.Error().Err(err).Str("subject", subject).Msg("ledger unavailable, token discarded")
		default:
			s.metrics.Login(loginError)
			log.Error().Err(err).Str("subject", subject).Msg("failed to record session, token discarded")
		}
		return Session{}, fmt.Errorf("SessionIssuer.Login: %w", err)
	}

	s.metrics.Login(loginOK)
	log.Info().
		Str("subject", subject).
		Str("jti", credential.ID).
		Time("expires_at", credential.ExpiresAt).
		Msg("session issued")

	return Session{Token: raw, Credential: credential}, nil
}

// TTL is the lifetime of every issued token.
func (s *SessionIssuer) TTL() time.Duration {
	return s.credentials.TTL()
}
