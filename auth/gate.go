package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"github.com/jrsteele09/go-spar-server/internal/instrument"
	"github.com/jrsteele09/go-spar-server/ledger"
	"github.com/jrsteele09/go-spar-server/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Revocation kinds
const (
	revokeSingle = "single"
	revokeAll    = "all"
)

// Principal is the identity a request proceeds as once the gate accepts it.
type Principal struct {
	Subject   string
	TokenID   string
	ExpiresAt time.Time
}

// Gate decides, per request, whether a presented bearer token is acceptable.
// Checks run cheapest first: signature, then expiry, then the ledger. Nothing
// is cached between calls.
type Gate struct {
	credentials *token.Credentials
	ledger      ledger.Repo
	metrics     *instrument.Metrics
	nowFunc     func() time.Time
}

func NewGate(credentials *token.Credentials, ledgerRepo ledger.Repo, opts ...Option) (*Gate, error) {
	if credentials == nil {
		return nil, fmt.Errorf("[NewGate] credentials are required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("[NewGate] ledger repo is required")
	}

	o := getOpts(opts...)
	return &Gate{
		credentials: credentials,
		ledger:      ledgerRepo,
		metrics:     o.metrics,
		nowFunc:     o.nowFunc,
	}, nil
}

// Authenticate returns the principal for raw or a *Rejection. A ledger that
// cannot be reached rejects the request.
func (g *Gate) Authenticate(ctx context.Context, raw string) (Principal, error) {
	if strings.TrimSpace(raw) == "" {
		return Principal{}, g.reject(ReasonNoCredential, autherrors.ErrNoCredential, "")
	}

	credential, err := g.credentials.Verify(raw)
	if err != nil {
		return Principal{}, g.reject(ReasonMalformed, err, "")
	}

	if credential.Expired(g.nowFunc()) {
		return Principal{}, g.reject(ReasonExpired,
			autherrors.Mark(autherrors.ErrExpiredCredential, nil, "Gate.Authenticate"), credential.ID)
	}

	live, err := g.ledger.IsLive(ctx, credential.ID)
	if err != nil {
		return Principal{}, g.reject(ReasonLedgerUnavailable,
			autherrors.Mark(autherrors.ErrLedgerUnavailable, err, "Gate.Authenticate"), credential.ID)
	}
	if !live {
		return Principal{}, g.reject(ReasonRevoked,
			autherrors.Mark(autherrors.ErrRevokedCredential, nil, "Gate.Authenticate"), credential.ID)
	}

	g.metrics.AuthDecision(instrument.OutcomeAccepted)
	return Principal{
		Subject:   credential.Subject,
		TokenID:   credential.ID,
		ExpiresAt: credential.ExpiresAt,
	}, nil
}

// Logout revokes the token raw. Only the signature is checked: an expired
// token can still be logged out, and a malformed one has nothing to revoke.
func (g *Gate) Logout(ctx context.Context, raw string) error {
	credential, err := g.credentials.Verify(raw)
	if err != nil {
		log.Debug().Err(err).Msg("logout with unverifiable token ignored")
		return nil
	}

	n, err := g.ledger.Revoke(ctx, credential.ID)
	if err != nil {
		log.Error().Err(err).Str("jti", credential.ID).Msg("failed to revoke token")
		return fmt.Errorf("Gate.Logout: %w", err)
	}
	if n == 0 {
		log.Debug().Str("jti", credential.ID).Msg("logout of token with no ledger row")
		return nil
	}

	g.metrics.Revoked(revokeSingle, n)
	log.Info().Str("subject", credential.Subject).Str("jti", credential.ID).Msg("token revoked")
	return nil
}

// LogoutAll revokes every token recorded for subject and returns how many rows
// were removed.
func (g *Gate) LogoutAll(ctx context.Context, subject string) (int64, error) {
	n, err := g.ledger.RevokeAll(ctx, subject)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to revoke all tokens")
		return 0, fmt.Errorf("Gate.LogoutAll: %w", err)
	}

	g.metrics.Revoked(revokeAll, n)
	log.Info().Str("subject", subject).Int64("revoked", n).Msg("all tokens revoked")
	return n, nil
}

// Sessions lists the ledger rows held for subject, including expired ones that
// have not been swept yet.
func (g *Gate) Sessions(ctx context.Context, subject string) ([]*ledger.Record, error) {
	records, err := g.ledger.ListFor(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("Gate.Sessions: %w", err)
	}
	return records, nil
}

func (g *Gate) reject(reason Reason, err error, jti string) error {
	g.metrics.AuthDecision(string(reason))

	var event *zerolog.Event
	switch reason {
	case ReasonLedgerUnavailable:
		event = log.Error()
	case ReasonMalformed, ReasonRevoked:
		event = log.Info()
	default:
		event = log.Debug()
	}
	if jti != "" {
		event = event.Str("jti", jti)
	}
	event.Err(err).Str("reason", string(reason)).Msg("credential rejected")

	return &Rejection{Reason: reason, Err: err}
}
