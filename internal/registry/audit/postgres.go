package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "presentia/pkg/domain"
)

// PostgresStore persists audit events in the registration_audit_events
// table. Pure I/O; ordering is by insertion (serial id).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO registration_audit_events (registration_id, action, org_id, details, ts)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(event.RegistrationID),
		string(event.Action),
		uuid.UUID(event.OrgID),
		event.Details,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRegistration(ctx context.Context, regID id.RegistrationID) ([]Event, error) {
	query := `
		SELECT registration_id, action, org_id, details, ts
		FROM registration_audit_events
		WHERE registration_id = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(regID))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event          Event
			registrationID uuid.UUID
			orgID          uuid.UUID
			action         string
		)
		if err := rows.Scan(&registrationID, &action, &orgID, &event.Details, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.RegistrationID = id.RegistrationID(registrationID)
		event.OrgID = id.OrgID(orgID)
		event.Action = Action(action)
		events = append(events, event)
	}
	return events, rows.Err()
}
