package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "presentia/pkg/domain"
	"presentia/pkg/platform/sentinel"
)

// PostgresStore persists enrollments. The (owner_id, biometric_type) unique
// constraint maps to sentinel.ErrConflict.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const enrollmentColumns = `
	id, owner_id, org_id, biometric_type, commitment_hash, nullifier, encrypted_salt, created_at
`

func (s *PostgresStore) Create(ctx context.Context, enrollment *Enrollment) error {
	query := `
		INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(enrollment.ID),
		uuid.UUID(enrollment.OwnerID),
		uuid.UUID(enrollment.OrgID),
		string(enrollment.BiometricType),
		enrollment.CommitmentHash,
		enrollment.Nullifier,
		enrollment.EncryptedSalt,
		enrollment.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByOwnerAndType(ctx context.Context, owner id.OwnerID, biometricType id.BiometricType) (*Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE owner_id = $1 AND biometric_type = $2
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(owner), string(biometricType))

	var (
		enrollment    Enrollment
		enrollmentID  uuid.UUID
		ownerID       uuid.UUID
		orgID         uuid.UUID
		biometricKind string
	)
	err := row.Scan(
		&enrollmentID,
		&ownerID,
		&orgID,
		&biometricKind,
		&enrollment.CommitmentHash,
		&enrollment.Nullifier,
		&enrollment.EncryptedSalt,
		&enrollment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan enrollment: %w", err)
	}
	enrollment.ID = id.EnrollmentID(enrollmentID)
	enrollment.OwnerID = id.OwnerID(ownerID)
	enrollment.OrgID = id.OrgID(orgID)
	enrollment.BiometricType = id.BiometricType(biometricKind)
	return &enrollment, nil
}

func (s *PostgresStore) Delete(ctx context.Context, enrollmentID id.EnrollmentID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, uuid.UUID(enrollmentID))
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
