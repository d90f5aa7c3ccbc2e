package token_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"github.com/jrsteele09/go-spar-server/token"
	"github.com/stretchr/testify/require"
)

const secretStr = "0123456789abcdef0123456789abcdef"

type ttlSettings time.Duration

func (t ttlSettings) GetTokenTTL() time.Duration { return time.Duration(t) }

func newCredentials(t *testing.T, secret string, ttl time.Duration, opts ...token.CredentialsOption) *token.Credentials {
	t.Helper()

	signer, err := token.NewHMACSigner([]byte(secret))
	require.NoError(t, err)

	c, err := token.NewCredentials(signer, ttlSettings(ttl), opts...)
	require.NoError(t, err)
	return c
}

func fixedNow(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestIssue_VerifyRoundTrip(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	c := newCredentials(t, secretStr, time.Hour, token.WithNowFunc(fixedNow(now)))

	for _, subject := range []string{"alice", "bob", "user.with.dots", "ünïcødé"} {
		raw, issued, err := c.Issue(subject)
		require.NoError(t, err)
		require.NotEmpty(t, raw)

		verified, err := c.Verify(raw)
		require.NoError(t, err)
		require.Equal(t, subject, verified.Subject)
		require.Equal(t, issued.ID, verified.ID)
		require.True(t, now.Equal(verified.IssuedAt))
		require.True(t, now.Add(time.Hour).Equal(verified.ExpiresAt))
	}
}

func TestIssue_FreshIDPerIssuance(t *testing.T) {
	c := newCredentials(t, secretStr, time.Hour)

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		_, issued, err := c.Issue("alice")
		require.NoError(t, err)
		_, dup := seen[issued.ID]
		require.False(t, dup, "jti reused: %s", issued.ID)
		seen[issued.ID] = struct{}{}
	}
}

func TestIssue_EmptySubject(t *testing.T) {
	c := newCredentials(t, secretStr, time.Hour)

	_, _, err := c.Issue("  ")
	require.Error(t, err)
	require.ErrorIs(t, err, autherrors.ErrInvalidArgument)
}

func TestVerify_DoesNotCheckExpiry(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	c := newCredentials(t, secretStr, time.Hour, token.WithNowFunc(fixedNow(past)))

	raw, _, err := c.Issue("alice")
	require.NoError(t, err)

	verified, err := c.Verify(raw)
	require.NoError(t, err)
	require.True(t, verified.Expired(time.Now()))
}

func TestVerify_ZeroTTL(t *testing.T) {
	c := newCredentials(t, secretStr, 0)

	raw, issued, err := c.Issue("alice")
	require.NoError(t, err)
	require.True(t, issued.IssuedAt.Equal(issued.ExpiresAt))

	verified, err := c.Verify(raw)
	require.NoError(t, err)
	require.True(t, verified.Expired(issued.IssuedAt))
}

func TestVerify_Tampering(t *testing.T) {
	c := newCredentials(t, secretStr, time.Hour)

	raw, _, err := c.Issue("alice")
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)

	flip := func(segment string, i int) string {
		b := []byte(segment)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		return string(b)
	}

	t.Run("payload", func(t *testing.T) {
		for _, i := range []int{0, len(parts[1]) / 3, len(parts[1]) / 2, len(parts[1]) - 2, len(parts[1]) - 1} {
			tampered := strings.Join([]string{parts[0], flip(parts[1], i), parts[2]}, ".")
			_, err := c.Verify(tampered)
			require.ErrorIs(t, err, autherrors.ErrMalformedCredential)
		}
	})

	t.Run("signature", func(t *testing.T) {
		for _, i := range []int{0, len(parts[2]) / 3, len(parts[2]) / 2, len(parts[2]) - 1} {
			tampered := strings.Join([]string{parts[0], parts[1], flip(parts[2], i)}, ".")
			_, err := c.Verify(tampered)
			require.ErrorIs(t, err, autherrors.ErrMalformedCredential)
		}
	})

	// The last character of a 43 character HS256 signature carries two
	// padding bits; setting them must not yield a second valid encoding.
	t.Run("signature padding bits", func(t *testing.T) {
		const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
		last := parts[2][len(parts[2])-1]
		value := strings.IndexByte(alphabet, last)
		require.GreaterOrEqual(t, value, 0)

		for bits := 1; bits <= 3; bits++ {
			variant := parts[2][:len(parts[2])-1] + string(alphabet[value|bits])
			if variant == parts[2] {
				continue
			}
			_, err := c.Verify(strings.Join([]string{parts[0], parts[1], variant}, "."))
			require.ErrorIs(t, err, autherrors.ErrMalformedCredential, variant)
		}
	})

	t.Run("header", func(t *testing.T) {
		tampered := strings.Join([]string{flip(parts[0], len(parts[0])/2), parts[1], parts[2]}, ".")
		_, err := c.Verify(tampered)
		require.ErrorIs(t, err, autherrors.ErrMalformedCredential)
	})
}

func TestVerify_Rejections(t *testing.T) {
	c := newCredentials(t, secretStr, time.Hour)

	otherSecret := newCredentials(t, "fedcba9876543210fedcba9876543210", time.Hour)
	foreign, _, err := otherSecret.Issue("alice")
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "alice",
		ID:        "jti-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "alice",
		ID:        "jti-2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secretStr))
	require.NoError(t, err)

	signer, err := token.NewHMACSigner([]byte(secretStr))
	require.NoError(t, err)
	noJTI, err := signer.Sign(jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	noSubject, err := signer.Sign(jwt.RegisteredClaims{
		ID:        "jti-3",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	noExpiry, err := signer.Sign(jwt.RegisteredClaims{
		Subject: "alice",
		ID:      "jti-4",
	})
	require.NoError(t, err)

	tests := map[string]string{
		"empty":               "",
		"garbage":             "not-a-jwt",
		"two segments":        "abc.def",
		"wrong secret":        foreign,
		"alg none":            unsigned,
		"unsupported alg":     hs512,
		"missing jti claim":   noJTI,
		"missing sub claim":   noSubject,
		"missing exp claim":   noExpiry,
		"trailing whitespace": foreign + " ",
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := c.Verify(raw)
			require.Error(t, err)
			require.ErrorIs(t, err, autherrors.ErrMalformedCredential)
		})
	}
}

func TestNewCredentials_Validation(t *testing.T) {
	signer, err := token.NewHMACSigner([]byte(secretStr))
	require.NoError(t, err)

	_, err = token.NewCredentials(nil, ttlSettings(time.Hour))
	require.Error(t, err)

	_, err = token.NewCredentials(signer, ttlSettings(-time.Second))
	require.Error(t, err)

	_, err = token.NewHMACSigner(nil)
	require.Error(t, err)
}
