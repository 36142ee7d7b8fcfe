package domain

import (
	"github.com/google/uuid"

	dErrors "presentia/pkg/domain-errors"
)

// Typed IDs prevent cross-entity assignment at compile time. Construct via
// the Parse helpers at trust boundaries; direct casting bypasses validation.
type (
	// OwnerID identifies the person a biometric enrollment belongs to.
	OwnerID uuid.UUID

	// OrgID identifies the organization a registration or attendance
	// attempt was made under.
	OrgID uuid.UUID

	// RegistrationID identifies one global biometric registration record.
	RegistrationID uuid.UUID

	// ProofID identifies a single attendance proof.
	ProofID uuid.UUID

	// EnrollmentID identifies one per-owner biometric enrollment record.
	EnrollmentID uuid.UUID
)

func (id OwnerID) String() string        { return uuid.UUID(id).String() }
func (id OrgID) String() string          { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id ProofID) String() string        { return uuid.UUID(id).String() }
func (id EnrollmentID) String() string   { return uuid.UUID(id).String() }

func (id OwnerID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }
func (id OrgID) IsZero() bool          { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ProofID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }
func (id EnrollmentID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }

// Named types do not inherit uuid.UUID's text marshaling, so each ID
// implements it explicitly to serialize as the canonical string form.
func (id OwnerID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id OrgID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id RegistrationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ProofID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id EnrollmentID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *OwnerID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OrgID) UnmarshalText(b []byte) error          { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RegistrationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ProofID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EnrollmentID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseOwnerID constructs an OwnerID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the
// nil UUID; no other errors are expected.
func ParseOwnerID(s string) (OwnerID, error) {
	u, err := parseUUID(s, "owner id")
	return OwnerID(u), err
}

// ParseOrgID constructs an OrgID from external input.
func ParseOrgID(s string) (OrgID, error) {
	u, err := parseUUID(s, "organization id")
	return OrgID(u), err
}

// ParseRegistrationID constructs a RegistrationID from external input.
func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID(s, "registration id")
	return RegistrationID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be the nil UUID")
	}
	return u, nil
}
