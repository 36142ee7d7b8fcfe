// Package attendance composes the location gate, commitment engine,
// uniqueness registry and proof engine into the enroll and mark-attendance
// flows. It is the only package external collaborators call.
package attendance

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	attmetrics "presentia/internal/attendance/metrics"
	"presentia/internal/biometric"
	"presentia/internal/commitment"
	"presentia/internal/location"
	"presentia/internal/proof"
	"presentia/internal/registry"
	"presentia/internal/registry/models"
	id "presentia/pkg/domain"
	dErrors "presentia/pkg/domain-errors"
	"presentia/pkg/platform/sentinel"
)

// BiometricSample is one raw capture submitted for enrollment.
type BiometricSample struct {
	Type id.BiometricType
	Data []byte
}

// EnrollParams describes a multi-biometric enrollment transaction.
type EnrollParams struct {
	Owner    id.OwnerID
	Org      id.OrgID
	Samples  []BiometricSample
	Metadata models.Metadata
}

// MarkParams describes one attendance-marking attempt.
type MarkParams struct {
	Owner   id.OwnerID
	Org     id.OrgID
	Type    id.BiometricType
	Sample  []byte
	Signals location.Signals
}

// Service is the attendance orchestrator.
type Service struct {
	registry    *registry.Service
	enrollments EnrollmentStore
	extractor   biometric.FeatureExtractor
	commits     *commitment.Engine
	verifier    *location.Verifier
	spoof       *location.SpoofDetector
	prover      proof.Engine
	metrics     *attmetrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// Option configures optional service dependencies.
type Option func(*Service)

func WithMetrics(m *attmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	reg *registry.Service,
	enrollments EnrollmentStore,
	extractor biometric.FeatureExtractor,
	commits *commitment.Engine,
	verifier *location.Verifier,
	spoof *location.SpoofDetector,
	prover proof.Engine,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	switch {
	case reg == nil:
		return nil, errors.New("registry service is required")
	case enrollments == nil:
		return nil, errors.New("enrollment store is required")
	case extractor == nil:
		return nil, errors.New("feature extractor is required")
	case commits == nil:
		return nil, errors.New("commitment engine is required")
	case verifier == nil:
		return nil, errors.New("location verifier is required")
	case spoof == nil:
		return nil, errors.New("spoof detector is required")
	case prover == nil:
		return nil, errors.New("proof engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		registry:    reg,
		enrollments: enrollments,
		extractor:   extractor,
		commits:     commits,
		verifier:    verifier,
		spoof:       spoof,
		prover:      prover,
		logger:      logger,
		tracer:      otel.Tracer("presentia/internal/attendance"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Enroll derives a commitment and nullifier per sample, registers them in
// the global uniqueness registry as one all-or-nothing transaction, and
// persists the enrollment records with their encrypted salts. If enrollment
// persistence fails after registration succeeded, the registrations are
// rolled back so no half-enrolled state survives.
func (s *Service) Enroll(ctx context.Context, params EnrollParams) ([]EnrollmentResult, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.Enroll",
		trace.WithAttributes(attribute.Int("samples", len(params.Samples))))
	defer span.End()

	if len(params.Samples) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one biometric sample is required")
	}

	type derived struct {
		sample        BiometricSample
		commitment    string
		nullifier     string
		encryptedSalt []byte
	}
	derivations := make([]derived, 0, len(params.Samples))
	batch := make([]registry.RegisterParams, 0, len(params.Samples))

	for _, sample := range params.Samples {
		features, err := s.extractor.Extract(ctx, sample.Data)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "feature extraction failed")
		}
		salt, err := s.commits.DeriveSalt()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "salt derivation failed")
		}
		commit, err := s.commits.Commit(features, salt)
		if err != nil {
			return nil, err
		}
		nullifier, err := s.commits.NullifierOf(features)
		if err != nil {
			return nil, err
		}
		encryptedSalt, err := s.commits.EncryptSalt(salt, params.Owner.String())
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "salt encryption failed")
		}

		derivations = append(derivations, derived{
			sample:        sample,
			commitment:    commit.String(),
			nullifier:     nullifier.String(),
			encryptedSalt: encryptedSalt,
		})
		batch = append(batch, registry.RegisterParams{
			CommitmentHash: commit.String(),
			Nullifier:      nullifier.String(),
			BiometricType:  sample.Type,
			Owner:          params.Owner,
			Org:            params.Org,
			Metadata:       params.Metadata,
		})
	}

	registrations, err := s.registry.RegisterAll(ctx, batch)
	if err != nil {
		return nil, err
	}

	results := make([]EnrollmentResult, 0, len(derivations))
	stored := make([]*Enrollment, 0, len(derivations))
	for _, d := range derivations {
		enrollment, err := NewEnrollment(
			params.Owner, params.Org, d.sample.Type,
			d.commitment, d.nullifier, d.encryptedSalt, s.now(),
		)
		if err == nil {
			err = s.enrollments.Create(ctx, enrollment)
		}
		if err != nil {
			s.unwindEnrollments(ctx, stored)
			s.registry.Rollback(ctx, registrations)
			if errors.Is(err, sentinel.ErrConflict) {
				return nil, dErrors.New(dErrors.CodeConflict, "owner already has an enrollment for this biometric type")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "enrollment persistence failed")
		}
		stored = append(stored, enrollment)
		results = append(results, EnrollmentResult{
			BiometricType: d.sample.Type,
			Commitment:    d.commitment,
			Nullifier:     d.nullifier,
			EncryptedSalt: d.encryptedSalt,
		})
	}

	if s.metrics != nil {
		s.metrics.Enrollments.Add(float64(len(results)))
	}
	s.logger.InfoContext(ctx, "enrollment completed",
		"owner_id", params.Owner.String(), "biometrics", len(results))
	return results, nil
}

// MarkAttendance runs the full attendance flow: location gate first, so no
// proving work is wasted on a rejected attempt, then feature extraction,
// salt decryption, commitment recomputation and proof generation. The salt
// plaintext lives only inside this call.
func (s *Service) MarkAttendance(ctx context.Context, params MarkParams) (*proof.AttendanceProof, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.MarkAttendance",
		trace.WithAttributes(
			attribute.String("biometric_type", string(params.Type)),
			attribute.String("strategy", string(s.prover.Strategy())),
		))
	defer span.End()

	result, err := s.verifier.Verify(ctx, params.Signals)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "location verification failed")
	}
	assessment, err := s.spoof.Assess(ctx, params.Owner, params.Signals)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "anti-spoofing assessment failed")
	}
	if !result.Valid || assessment.Rejected() {
		reason := "invalid_location"
		if result.Valid {
			reason = "spoofing_risk"
		}
		if s.metrics != nil {
			s.metrics.LocationRejected.WithLabelValues(reason).Inc()
		}
		s.logger.WarnContext(ctx, "attendance rejected at location gate",
			"owner_id", params.Owner.String(), "reason", reason, "risk", assessment.Risk)
		return nil, &LocationRejectedError{
			Valid:      result.Valid,
			Confidence: result.Confidence,
			Assessment: assessment,
		}
	}

	enrollment, err := s.enrollments.FindByOwnerAndType(ctx, params.Owner, params.Type)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no enrollment for this owner and biometric type")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "enrollment lookup failed")
	}

	features, err := s.extractor.Extract(ctx, params.Sample)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "feature extraction failed")
	}

	salt, err := s.commits.DecryptSalt(enrollment.EncryptedSalt, params.Owner.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeIntegrity, "enrollment salt cannot be decrypted")
	}

	commit, err := s.commits.Commit(features, salt)
	if err != nil {
		return nil, err
	}
	nullifier, err := s.commits.NullifierOf(features)
	if err != nil {
		return nil, err
	}
	if commit.String() != enrollment.CommitmentHash {
		return nil, dErrors.New(dErrors.CodeRejected, "biometric sample does not match the enrollment")
	}
	if _, err := s.registry.VerifyOwnership(ctx, params.Owner, enrollment.CommitmentHash, params.Type); err != nil {
		if errors.Is(err, registry.ErrNotRegistered) {
			return nil, dErrors.New(dErrors.CodeIntegrity, "enrollment has no backing registration")
		}
		return nil, err
	}

	// Without a GPS fix the proof binds to a distinct absent-location
	// sentinel, never to a default (0,0) coordinate.
	var (
		lat, lng     float64
		locationHash *big.Int
	)
	if params.Signals.GPS != nil {
		lat, lng = params.Signals.GPS.Point.Lat, params.Signals.GPS.Point.Lng
		locationHash, err = proof.LocationHash(lat, lng)
	} else {
		locationHash, err = proof.AbsentLocationHash()
	}
	if err != nil {
		return nil, err
	}
	timestampHash, err := proof.TimestampHash(s.now())
	if err != nil {
		return nil, err
	}
	orgHash, err := proof.OrganizationHash(params.Org)
	if err != nil {
		return nil, err
	}

	start := s.now()
	attendanceProof, err := s.prover.Generate(ctx, proof.Request{
		Features:         features,
		Salt:             salt,
		Commitment:       commit,
		Nullifier:        nullifier,
		LocationHash:     locationHash,
		TimestampHash:    timestampHash,
		OrganizationHash: orgHash,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "proof generation failed")
	}
	if s.metrics != nil {
		s.metrics.ProofDuration.Observe(time.Since(start).Seconds())
		s.metrics.AttendanceMarked.Inc()
	}

	if params.Signals.GPS != nil {
		attendanceProof.Metadata.Latitude = proof.FormatCoord(lat)
		attendanceProof.Metadata.Longitude = proof.FormatCoord(lng)
	}
	s.logger.InfoContext(ctx, "attendance proof issued",
		"owner_id", params.Owner.String(), "proof_id", attendanceProof.ID.String(),
		"strategy", string(s.prover.Strategy()))
	return attendanceProof, nil
}

// VerifyAttendanceProof checks a previously issued proof. It is idempotent
// and re-derives nothing biometric: a relying party can call it any time.
func (s *Service) VerifyAttendanceProof(ctx context.Context, p *proof.AttendanceProof) (bool, error) {
	if p == nil {
		return false, dErrors.New(dErrors.CodeInvalidInput, "proof is required")
	}
	ok, err := s.prover.Verify(ctx, p.Blob, p.PublicSignals)
	if err != nil {
		return false, err
	}
	if s.metrics != nil {
		result := "rejected"
		if ok {
			result = "valid"
		}
		s.metrics.ProofsVerified.WithLabelValues(result).Inc()
	}
	return ok, nil
}

// GetUniquenessStatus is the pre-flight UI check: the registration holding
// (commitmentHash, type), or nil when the slot is free.
func (s *Service) GetUniquenessStatus(ctx context.Context, commitmentHash string, biometricType id.BiometricType) (*models.Registration, error) {
	return s.registry.CheckExists(ctx, commitmentHash, biometricType)
}

func (s *Service) unwindEnrollments(ctx context.Context, stored []*Enrollment) {
	for i := len(stored) - 1; i >= 0; i-- {
		if err := s.enrollments.Delete(ctx, stored[i].ID); err != nil {
			s.logger.ErrorContext(ctx, "enrollment unwind failed",
				"enrollment_id", stored[i].ID.String(), "error", err)
		}
	}
}
