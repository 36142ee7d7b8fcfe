package store

import (
	"context"
	"fmt"
	"time"

	"presentia/internal/registry/models"
	id "presentia/pkg/domain"
	"presentia/pkg/platform/sentinel"
)

// Uniqueness violations wrap sentinel.ErrConflict so callers can match either
// the broad conflict or the specific constraint that fired.
var (
	ErrDuplicateCommitment = fmt.Errorf("commitment already registered: %w", sentinel.ErrConflict)
	ErrDuplicateNullifier  = fmt.Errorf("nullifier already registered: %w", sentinel.ErrConflict)
)

// RegistrationStore persists global biometric registrations. It is the one
// piece of shared mutable state in the core; CreateIfAbsent and RecordAttempt
// must be atomic at the storage layer so concurrent enrollments of the same
// biometric cannot both succeed.
type RegistrationStore interface {
	// CreateIfAbsent inserts the registration unless (commitment, type)
	// or (nullifier, type) is already taken, in which case it returns
	// ErrDuplicateCommitment or ErrDuplicateNullifier without writing.
	CreateIfAbsent(ctx context.Context, reg *models.Registration) error

	// FindByCommitment returns the registration for (commitment, type), or
	// sentinel.ErrNotFound. Read-only.
	FindByCommitment(ctx context.Context, commitmentHash string, biometricType id.BiometricType) (*models.Registration, error)

	// FindByNullifier returns the registration for (nullifier, type), or
	// sentinel.ErrNotFound. Read-only.
	FindByNullifier(ctx context.Context, nullifier string, biometricType id.BiometricType) (*models.Registration, error)

	// RecordAttempt atomically applies one duplicate attempt to the record
	// (counter, last-attempt timestamp, suspicious latch) and returns the
	// updated registration.
	RecordAttempt(ctx context.Context, regID id.RegistrationID, at time.Time) (*models.Registration, error)

	// Delete removes a registration. Used only by the compensating rollback
	// of a failed multi-biometric enrollment transaction.
	Delete(ctx context.Context, regID id.RegistrationID) error
}
