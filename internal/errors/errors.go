package errors

import (
	"errors"
	"fmt"
)

// Common error types for the telemetry server
var (
	// Credential errors raised while verifying a presented bearer token
	ErrNoCredential        = errors.New("no credential presented")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrExpiredCredential   = errors.New("credential expired")
	ErrRevokedCredential   = errors.New("credential revoked or unknown")

	// Ledger errors
	ErrLedgerUnavailable = errors.New("revocation ledger unavailable")
	ErrConflict          = errors.New("token id already recorded")

	// Account errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyExists      = errors.New("already exists")
	ErrWeakPassword       = errors.New("weak password")

	// Access errors
	ErrForbidden = errors.New("forbidden")

	// General errors
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInternal        = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Mark attaches a sentinel kind to a cause so that errors.Is matches both.
func Mark(kind, cause error, context string) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", context, kind)
	}
	return fmt.Errorf("%s: %w: %w", context, kind, cause)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
