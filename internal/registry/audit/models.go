package audit

import (
	"time"

	id "presentia/pkg/domain"
)

// Action labels an audit event on a registration record.
type Action string

const (
	ActionRegistered       Action = "REGISTERED"
	ActionDuplicateAttempt Action = "DUPLICATE_ATTEMPT"
	ActionVerified         Action = "VERIFIED"
	ActionRolledBack       Action = "ROLLED_BACK"
)

// Event is one append-only audit entry for a registration. Events live in
// their own store keyed by registration ID rather than embedded in the
// registration record, so a hot record cannot grow without bound.
type Event struct {
	RegistrationID id.RegistrationID `json:"registration_id"`
	Action         Action            `json:"action"`
	OrgID          id.OrgID          `json:"org_id"`
	Details        string            `json:"details,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}
