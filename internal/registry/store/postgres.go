package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"presentia/internal/registry/models"
	id "presentia/pkg/domain"
	"presentia/pkg/platform/sentinel"
)

// Postgres persists registrations. Uniqueness is enforced by the two unique
// indexes, so CreateIfAbsent is race-free without explicit locking; attempt
// accounting is a single UPDATE and therefore atomic.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const registrationColumns = `
	id, commitment_hash, nullifier, biometric_type, owner_id, org_id,
	device_id, platform, location, registered_at,
	suspicious, attempt_count, last_attempt_at, blocked_until, created_at
`

func (s *Postgres) CreateIfAbsent(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (` + registrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(reg.ID),
		reg.CommitmentHash,
		reg.Nullifier,
		string(reg.BiometricType),
		uuid.UUID(reg.OwnerID),
		uuid.UUID(reg.OrgID),
		reg.Metadata.DeviceID,
		reg.Metadata.Platform,
		reg.Metadata.Location,
		reg.Metadata.RegisteredAt,
		reg.Suspicious,
		reg.AttemptCount,
		reg.LastAttemptAt,
		reg.BlockedUntil,
		reg.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "nullifier") {
				return ErrDuplicateNullifier
			}
			return ErrDuplicateCommitment
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

func (s *Postgres) FindByCommitment(ctx context.Context, commitmentHash string, biometricType id.BiometricType) (*models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE commitment_hash = $1 AND biometric_type = $2
	`
	return scanRegistration(s.db.QueryRowContext(ctx, query, commitmentHash, string(biometricType)))
}

func (s *Postgres) FindByNullifier(ctx context.Context, nullifier string, biometricType id.BiometricType) (*models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE nullifier = $1 AND biometric_type = $2
	`
	return scanRegistration(s.db.QueryRowContext(ctx, query, nullifier, string(biometricType)))
}

func (s *Postgres) RecordAttempt(ctx context.Context, regID id.RegistrationID, at time.Time) (*models.Registration, error) {
	query := `
		UPDATE registrations
		SET attempt_count = attempt_count + 1,
		    last_attempt_at = $2,
		    suspicious = suspicious OR attempt_count + 1 >= $3
		WHERE id = $1
		RETURNING ` + registrationColumns + `
	`
	return scanRegistration(s.db.QueryRowContext(ctx, query, uuid.UUID(regID), at, models.SuspicionThreshold))
}

func (s *Postgres) Delete(ctx context.Context, regID id.RegistrationID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, uuid.UUID(regID))
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanRegistration(row *sql.Row) (*models.Registration, error) {
	var (
		reg           models.Registration
		regID         uuid.UUID
		ownerID       uuid.UUID
		orgID         uuid.UUID
		biometricType string
	)
	err := row.Scan(
		&regID,
		&reg.CommitmentHash,
		&reg.Nullifier,
		&biometricType,
		&ownerID,
		&orgID,
		&reg.Metadata.DeviceID,
		&reg.Metadata.Platform,
		&reg.Metadata.Location,
		&reg.Metadata.RegisteredAt,
		&reg.Suspicious,
		&reg.AttemptCount,
		&reg.LastAttemptAt,
		&reg.BlockedUntil,
		&reg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	reg.ID = id.RegistrationID(regID)
	reg.OwnerID = id.OwnerID(ownerID)
	reg.OrgID = id.OrgID(orgID)
	reg.BiometricType = id.BiometricType(biometricType)
	return &reg, nil
}
