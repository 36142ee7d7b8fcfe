package registry

import (
	"errors"
	"fmt"
	"time"

	id "presentia/pkg/domain"
)

// ErrNotRegistered reports an ownership check against a commitment that has
// no matching record for that owner.
var ErrNotRegistered = errors.New("biometric not registered for this owner")

// BiometricDuplicateError reports a registration attempt whose commitment is
// already taken. It carries only the first registrant's organization and
// registration time; no biometric content is leaked.
type BiometricDuplicateError struct {
	OrgID        id.OrgID
	RegisteredAt time.Time
}

func (e *BiometricDuplicateError) Error() string {
	return fmt.Sprintf("biometric already registered with organization %s at %s",
		e.OrgID, e.RegisteredAt.Format(time.RFC3339))
}

// NullifierDuplicateError reports a registration whose commitment is fresh
// but whose nullifier collides with an existing record: the same physical
// biometric re-enrolled under a different salt, possibly a different
// identity or organization.
type NullifierDuplicateError struct {
	OrgID        id.OrgID
	RegisteredAt time.Time
}

func (e *NullifierDuplicateError) Error() string {
	return fmt.Sprintf("same physical biometric already registered with organization %s at %s",
		e.OrgID, e.RegisteredAt.Format(time.RFC3339))
}
