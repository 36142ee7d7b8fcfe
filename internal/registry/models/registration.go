package models

import (
	"time"

	"github.com/google/uuid"

	id "presentia/pkg/domain"
	dErrors "presentia/pkg/domain-errors"
)

// SuspicionThreshold is the duplicate-attempt count at which a registration
// is flagged for suspicious activity.
const SuspicionThreshold = 3

// Metadata captures where and how a registration was made. Location is the
// privacy-rounded form only; raw coordinates never reach this struct.
type Metadata struct {
	DeviceID     string    `json:"device_id,omitempty"`
	Platform     string    `json:"platform,omitempty"`
	Location     string    `json:"location,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Registration is the aggregate root for one globally unique biometric.
//
// Invariants:
//   - (CommitmentHash, BiometricType) is unique across all organizations
//   - (Nullifier, BiometricType) is unique across all organizations
//   - Created once on first successful registration; mutated only through
//     RecordDuplicateAttempt and audit appends
//   - Deleted only as part of an all-or-nothing rollback of a failed
//     multi-biometric enrollment transaction
//
// The commitment binds features and salt; the nullifier binds features alone.
// A re-salted enrollment of the same physical biometric produces a fresh
// commitment but collides on the nullifier, which is the cross-organization
// duplicate signal.
type Registration struct {
	ID             id.RegistrationID `json:"id"`
	CommitmentHash string            `json:"commitment_hash"`
	Nullifier      string            `json:"nullifier"`
	BiometricType  id.BiometricType  `json:"biometric_type"`
	OwnerID        id.OwnerID        `json:"owner_id"`
	OrgID          id.OrgID          `json:"org_id"`
	Metadata       Metadata          `json:"metadata"`

	// Security flags. AttemptCount counts duplicate registration attempts
	// against this record; Suspicious latches once the count reaches
	// SuspicionThreshold and is never cleared automatically.
	Suspicious    bool       `json:"suspicious"`
	AttemptCount  int        `json:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	BlockedUntil  *time.Time `json:"blocked_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewRegistration validates and constructs a Registration.
func NewRegistration(
	commitmentHash, nullifier string,
	biometricType id.BiometricType,
	owner id.OwnerID,
	org id.OrgID,
	meta Metadata,
	now time.Time,
) (*Registration, error) {
	if commitmentHash == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "commitment hash is required")
	}
	if nullifier == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "nullifier is required")
	}
	if !biometricType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported biometric type")
	}
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner id is required")
	}
	if org.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "organization id is required")
	}
	if meta.RegisteredAt.IsZero() {
		meta.RegisteredAt = now
	}
	return &Registration{
		ID:             id.RegistrationID(uuid.New()),
		CommitmentHash: commitmentHash,
		Nullifier:      nullifier,
		BiometricType:  biometricType,
		OwnerID:        owner,
		OrgID:          org,
		Metadata:       meta,
		CreatedAt:      now,
	}, nil
}

// ApplyDuplicateAttempt records one duplicate registration attempt at the
// given time. Latches Suspicious once the counter reaches the threshold.
// Stores apply this under their own atomicity (mutex or single UPDATE) so
// concurrent attempts each count exactly once.
func (r *Registration) ApplyDuplicateAttempt(now time.Time) {
	r.AttemptCount++
	r.LastAttemptAt = &now
	if r.AttemptCount >= SuspicionThreshold {
		r.Suspicious = true
	}
}

// IsBlocked reports whether the record is inside an abuse-block window.
func (r *Registration) IsBlocked(now time.Time) bool {
	return r.BlockedUntil != nil && now.Before(*r.BlockedUntil)
}
