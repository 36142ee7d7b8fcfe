package attendance

import (
	"time"

	"github.com/google/uuid"

	id "presentia/pkg/domain"
	dErrors "presentia/pkg/domain-errors"
)

// Enrollment is the per-owner record linking an owner to their registered
// biometric. The salt is stored encrypted under a key bound to the owner;
// the plaintext salt exists only transiently during proof generation.
type Enrollment struct {
	ID             id.EnrollmentID  `json:"id"`
	OwnerID        id.OwnerID       `json:"owner_id"`
	OrgID          id.OrgID         `json:"org_id"`
	BiometricType  id.BiometricType `json:"biometric_type"`
	CommitmentHash string           `json:"commitment_hash"`
	Nullifier      string           `json:"nullifier"`
	EncryptedSalt  []byte           `json:"-"`
	CreatedAt      time.Time        `json:"created_at"`
}

func NewEnrollment(
	owner id.OwnerID,
	org id.OrgID,
	biometricType id.BiometricType,
	commitmentHash, nullifier string,
	encryptedSalt []byte,
	now time.Time,
) (*Enrollment, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner id is required")
	}
	if org.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "organization id is required")
	}
	if !biometricType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported biometric type")
	}
	if commitmentHash == "" || nullifier == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "commitment and nullifier are required")
	}
	if len(encryptedSalt) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "encrypted salt is required")
	}
	return &Enrollment{
		ID:             id.EnrollmentID(uuid.New()),
		OwnerID:        owner,
		OrgID:          org,
		BiometricType:  biometricType,
		CommitmentHash: commitmentHash,
		Nullifier:      nullifier,
		EncryptedSalt:  encryptedSalt,
		CreatedAt:      now,
	}, nil
}

// EnrollmentResult is what the enroll operation hands back to the caller
// per biometric type. The encrypted salt is returned so external systems
// can hold their own copy; the plaintext never leaves the core.
type EnrollmentResult struct {
	BiometricType id.BiometricType `json:"biometric_type"`
	Commitment    string           `json:"commitment"`
	Nullifier     string           `json:"nullifier"`
	EncryptedSalt []byte           `json:"encrypted_salt"`
}
