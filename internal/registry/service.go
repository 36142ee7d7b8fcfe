// Package registry enforces global biometric uniqueness: at most one
// registration per physical biometric across all organizations.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"presentia/internal/registry/audit"
	regmetrics "presentia/internal/registry/metrics"
	"presentia/internal/registry/models"
	"presentia/internal/registry/store"
	id "presentia/pkg/domain"
	dErrors "presentia/pkg/domain-errors"
	"presentia/pkg/platform/sentinel"
)

// RegisterParams carries everything needed to create one registration.
type RegisterParams struct {
	CommitmentHash string
	Nullifier      string
	BiometricType  id.BiometricType
	Owner          id.OwnerID
	Org            id.OrgID
	Metadata       models.Metadata
}

// Service owns uniqueness enforcement and duplicate-attempt accounting.
type Service struct {
	store   store.RegistrationStore
	audit   *audit.Publisher
	metrics *regmetrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures optional service dependencies.
type Option func(*Service)

func WithMetrics(m *regmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.RegistrationStore, auditPub *audit.Publisher, logger *slog.Logger, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("registration store is required")
	}
	if auditPub == nil {
		return nil, errors.New("audit publisher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: st, audit: auditPub, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckExists returns the registration holding (commitmentHash, type), or
// nil when the slot is free. Read-only, no side effects.
func (s *Service) CheckExists(ctx context.Context, commitmentHash string, biometricType id.BiometricType) (*models.Registration, error) {
	reg, err := s.store.FindByCommitment(ctx, commitmentHash, biometricType)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "uniqueness lookup failed")
	}
	return reg, nil
}

// Register creates a registration after both uniqueness checks pass.
//
// A commitment collision returns *BiometricDuplicateError and logs the
// attempt against the existing record. A nullifier collision under a fresh
// commitment returns *NullifierDuplicateError: the same physical biometric
// re-salted, which is exactly the cross-organization fraud the nullifier
// exists to catch. The store's unique constraints close the race window
// between check and create.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.Registration, error) {
	if s.metrics != nil {
		defer func(start time.Time) {
			s.metrics.RegisterDuration.Observe(time.Since(start).Seconds())
		}(s.now())
	}

	reg, err := models.NewRegistration(
		params.CommitmentHash, params.Nullifier,
		params.BiometricType, params.Owner, params.Org,
		params.Metadata, s.now(),
	)
	if err != nil {
		return nil, err
	}

	if existing, err := s.CheckExists(ctx, params.CommitmentHash, params.BiometricType); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, s.commitmentDuplicate(ctx, existing, params)
	}

	if err := s.store.CreateIfAbsent(ctx, reg); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateCommitment):
			// Lost the race since the pre-check; resolve the winner.
			existing, findErr := s.store.FindByCommitment(ctx, params.CommitmentHash, params.BiometricType)
			if findErr != nil {
				return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "duplicate resolution failed")
			}
			return nil, s.commitmentDuplicate(ctx, existing, params)
		case errors.Is(err, store.ErrDuplicateNullifier):
			existing, findErr := s.store.FindByNullifier(ctx, params.Nullifier, params.BiometricType)
			if findErr != nil {
				return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "duplicate resolution failed")
			}
			return nil, s.nullifierDuplicate(ctx, existing, params)
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registration")
		}
	}

	s.emit(ctx, audit.Event{
		RegistrationID: reg.ID,
		Action:         audit.ActionRegistered,
		OrgID:          params.Org,
		Timestamp:      s.now(),
	})
	if s.metrics != nil {
		s.metrics.Registrations.Inc()
	}
	return reg, nil
}

// RegisterAll registers several biometrics as one all-or-nothing
// transaction. On any failure every prior success is deleted before the
// error propagates; there is no distributed transaction, only an explicit
// compensating rollback.
func (s *Service) RegisterAll(ctx context.Context, batch []RegisterParams) ([]*models.Registration, error) {
	created := make([]*models.Registration, 0, len(batch))
	for _, params := range batch {
		reg, err := s.Register(ctx, params)
		if err != nil {
			s.rollback(ctx, created)
			return nil, err
		}
		created = append(created, reg)
	}
	return created, nil
}

// LogDuplicateAttempt records one duplicate attempt against the record that
// holds the commitment: atomic counter increment, suspicious latch, one
// audit entry. Failures here must never block the caller's primary error
// path, so they are logged and swallowed.
func (s *Service) LogDuplicateAttempt(ctx context.Context, commitmentHash string, biometricType id.BiometricType, org id.OrgID, details string) {
	reg, err := s.store.FindByCommitment(ctx, commitmentHash, biometricType)
	if err != nil {
		s.logger.WarnContext(ctx, "duplicate attempt logging skipped", "error", err)
		return
	}
	s.logAttemptOn(ctx, reg, org, details)
}

func (s *Service) logAttemptOn(ctx context.Context, reg *models.Registration, org id.OrgID, details string) {
	wasSuspicious := reg.Suspicious
	updated, err := s.store.RecordAttempt(ctx, reg.ID, s.now())
	if err != nil {
		s.logger.WarnContext(ctx, "duplicate attempt counter update failed",
			"registration_id", reg.ID.String(), "error", err)
		return
	}
	if !wasSuspicious && updated.Suspicious {
		s.logger.WarnContext(ctx, "registration flagged suspicious",
			"registration_id", updated.ID.String(), "attempts", updated.AttemptCount)
		if s.metrics != nil {
			s.metrics.SuspiciousFlagged.Inc()
		}
	}
	s.emit(ctx, audit.Event{
		RegistrationID: reg.ID,
		Action:         audit.ActionDuplicateAttempt,
		OrgID:          org,
		Details:        details,
		Timestamp:      s.now(),
	})
}

// VerifyOwnership confirms that owner holds the registration for
// (commitmentHash, type). A match appends a VERIFIED audit entry; anything
// else is ErrNotRegistered.
func (s *Service) VerifyOwnership(ctx context.Context, owner id.OwnerID, commitmentHash string, biometricType id.BiometricType) (bool, error) {
	reg, err := s.store.FindByCommitment(ctx, commitmentHash, biometricType)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, ErrNotRegistered
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "ownership lookup failed")
	}
	if reg.OwnerID != owner {
		return false, ErrNotRegistered
	}
	s.emit(ctx, audit.Event{
		RegistrationID: reg.ID,
		Action:         audit.ActionVerified,
		OrgID:          reg.OrgID,
		Timestamp:      s.now(),
	})
	return true, nil
}

// AuditTrail returns the ordered audit events for a registration.
func (s *Service) AuditTrail(ctx context.Context, regID id.RegistrationID) ([]audit.Event, error) {
	return s.audit.List(ctx, regID)
}

func (s *Service) commitmentDuplicate(ctx context.Context, existing *models.Registration, params RegisterParams) error {
	s.logAttemptOn(ctx, existing, params.Org, "duplicate commitment registration attempt")
	if s.metrics != nil {
		s.metrics.DuplicatesDetected.WithLabelValues("commitment").Inc()
	}
	return &BiometricDuplicateError{OrgID: existing.OrgID, RegisteredAt: existing.Metadata.RegisteredAt}
}

func (s *Service) nullifierDuplicate(ctx context.Context, existing *models.Registration, params RegisterParams) error {
	s.logAttemptOn(ctx, existing, params.Org, "same nullifier under a different commitment")
	if s.metrics != nil {
		s.metrics.DuplicatesDetected.WithLabelValues("nullifier").Inc()
	}
	return &NullifierDuplicateError{OrgID: existing.OrgID, RegisteredAt: existing.Metadata.RegisteredAt}
}

// Rollback deletes registrations created earlier in a failed enrollment
// transaction, newest first, auditing each removal. Used by the orchestrator
// when a step after registration fails.
func (s *Service) Rollback(ctx context.Context, created []*models.Registration) {
	s.rollback(ctx, created)
}

func (s *Service) rollback(ctx context.Context, created []*models.Registration) {
	for i := len(created) - 1; i >= 0; i-- {
		reg := created[i]
		if err := s.store.Delete(ctx, reg.ID); err != nil {
			s.logger.ErrorContext(ctx, "enrollment rollback failed",
				"registration_id", reg.ID.String(), "error", err)
			continue
		}
		s.emit(ctx, audit.Event{
			RegistrationID: reg.ID,
			Action:         audit.ActionRolledBack,
			OrgID:          reg.OrgID,
			Details:        "multi-biometric enrollment rolled back",
			Timestamp:      s.now(),
		})
	}
}

// emit appends an audit event, logging rather than propagating failures:
// audit writes never fail a registration outcome already decided.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit append failed",
			"registration_id", event.RegistrationID.String(),
			"action", string(event.Action), "error", err)
	}
}
