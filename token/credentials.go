package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
)

// Credential is the verified content of a bearer token.
type Credential struct {
	Subject   string    // Owning account (username)
	ID        string    // jti, the revocation key
	IssuedAt  time.Time // iat
	ExpiresAt time.Time // exp
}

// Expired reports whether the credential's own expiry has been reached at now.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TokenSettings is the subset of configuration the credentials need.
type TokenSettings interface {
	GetTokenTTL() time.Duration
}

// Credentials issues and structurally verifies bearer tokens. It holds no
// state beyond its signer and settings, so it is safe for concurrent use.
type Credentials struct {
	signer  Signer
	ttl     time.Duration
	nowFunc func() time.Time
	idFunc  func() string
	parser  *jwt.Parser
}

type CredentialsOption func(*Credentials)

func WithNowFunc(now func() time.Time) CredentialsOption {
	return func(c *Credentials) {
		c.nowFunc = now
	}
}

// WithIDFunc replaces the jti generator. Intended for tests that need to force
// an id collision.
func WithIDFunc(id func() string) CredentialsOption {
	return func(c *Credentials) {
		c.idFunc = id
	}
}

func NewCredentials(signer Signer, settings TokenSettings, options ...CredentialsOption) (*Credentials, error) {
	if signer == nil {
		return nil, fmt.Errorf("[NewCredentials] signer is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("[NewCredentials] token settings are required")
	}
	if settings.GetTokenTTL() < 0 {
		return nil, fmt.Errorf("[NewCredentials] token ttl must not be negative: %s", settings.GetTokenTTL())
	}

	c := &Credentials{
		signer:  signer,
		ttl:     settings.GetTokenTTL(),
		nowFunc: time.Now,
		idFunc:  uuid.NewString,
	}
	for _, opt := range options {
		opt(c)
	}

	// Temporal checks belong to the gate, so only the signature and
	// algorithm are enforced here. Strict decoding rejects non-zero base64
	// padding bits so each credential has exactly one accepted encoding.
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
		jwt.WithoutClaimsValidation(),
		jwt.WithStrictDecoding(),
	)
	return c, nil
}

// TTL returns the configured token lifetime.
func (c *Credentials) TTL() time.Duration {
	return c.ttl
}

// Issue mints a signed token for subject with a fresh jti.
func (c *Credentials) Issue(subject string) (string, Credential, error) {
	if strings.TrimSpace(subject) == "" {
		return "", Credential{}, autherrors.Mark(autherrors.ErrInvalidArgument, nil, "Credentials.Issue empty subject")
	}

	issuedAt := c.nowFunc().UTC().Truncate(time.Second)
	credential := Credential{
		Subject:   subject,
		ID:        c.idFunc(),
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(c.ttl),
	}

	claims := jwt.RegisteredClaims{
		Subject:   credential.Subject,
		ID:        credential.ID,
		IssuedAt:  jwt.NewNumericDate(credential.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(credential.ExpiresAt),
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", Credential{}, fmt.Errorf("Credentials.Issue: %w", err)
	}
	return signed, credential, nil
}

// Verify checks the token's encoding, algorithm and signature and returns its
// claims. Expiry and revocation are not checked.
func (c *Credentials) Verify(raw string) (Credential, error) {
	if strings.TrimSpace(raw) == "" {
		return Credential{}, autherrors.Mark(autherrors.ErrMalformedCredential, nil, "Credentials.Verify empty token")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := c.parser.ParseWithClaims(raw, claims, c.signer.GetVerificationKey)
	if err != nil {
		return Credential{}, autherrors.Mark(autherrors.ErrMalformedCredential, err, "Credentials.Verify")
	}
	if !parsed.Valid {
		return Credential{}, autherrors.Mark(autherrors.ErrMalformedCredential, nil, "Credentials.Verify invalid token")
	}

	if claims.Subject == "" {
		return Credential{}, autherrors.Mark(autherrors.ErrMalformedCredential, nil, "Credentials.Verify missing sub claim")
	}
	if claims.ID == "" {
		return Credential{}, autherrors.Mark(autherrors.ErrMalformedCredential, nil, "Credentials.Verify missing jti claim")
	}
	if claims.ExpiresAt == nil {
		return Credential{}, autherrors.Mark(autherrors.ErrMalformedCredential, nil, "Credentials.Verify missing exp claim")
	}

	credential := Credential{
		Subject:   claims.Subject,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.UTC(),
	}
	if claims.IssuedAt != nil {
		credential.IssuedAt = claims.IssuedAt.UTC()
	}
	return credential, nil
}
