package auth

import (
	"errors"
	"fmt"

	"github.com/jrsteele09/go-spar-server/internal/instrument"
)

// Reason classifies why the gate refused a credential. Callers map every
// reason except ReasonLedgerUnavailable to the same external response.
type Reason string

const (
	ReasonNoCredential      Reason = instrument.OutcomeNoCredential
	ReasonMalformed         Reason = instrument.OutcomeMalformed
	ReasonExpired           Reason = instrument.OutcomeExpired
	ReasonRevoked           Reason = instrument.OutcomeRevoked
	ReasonLedgerUnavailable Reason = instrument.OutcomeLedgerUnavailable
)

// Rejection is the error returned by Gate.Authenticate. Err wraps one of the
// autherrors sentinels, so errors.Is works through a Rejection.
type Rejection struct {
	Reason Reason
	Err    error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("credential rejected (%s): %v", r.Reason, r.Err)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// ReasonOf extracts the rejection reason from err, if it carries one.
func ReasonOf(err error) (Reason, bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection.Reason, true
	}
	return "", false
}
