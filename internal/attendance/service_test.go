package attendance

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"presentia/internal/biometric"
	"presentia/internal/commitment"
	"presentia/internal/location"
	"presentia/internal/proof"
	"presentia/internal/registry"
	"presentia/internal/registry/audit"
	"presentia/internal/registry/store"
	id "presentia/pkg/domain"
	dErrors "presentia/pkg/domain-errors"
)

type OrchestratorSuite struct {
	suite.Suite
	service  *Service
	lastSeen *location.InMemoryLastSeen
	registry *registry.Service
	owner    id.OwnerID
	org      id.OrgID
	ctx      context.Context
	clock    time.Time
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	logger := slog.Default()
	var err error
	s.registry, err = registry.NewService(store.NewInMemory(), audit.NewPublisher(audit.NewInMemoryStore()), logger)
	s.Require().NoError(err)

	commits, err := commitment.NewEngine([]byte("orchestrator-secret"))
	s.Require().NoError(err)

	verifier, err := location.NewVerifier(location.Geofence{
		Name:          "campus",
		Center:        location.Point{Lat: 37.7749, Lng: -122.4194},
		RadiusM:       200,
		AllowedBSSIDs: []string{"aa:bb:cc:dd:ee:01"},
		AllowedCIDRs:  []string{"10.20.0.0/16"},
	}, logger)
	s.Require().NoError(err)

	s.lastSeen = location.NewInMemoryLastSeen()
	spoof, err := location.NewSpoofDetector(s.lastSeen, nil, logger)
	s.Require().NoError(err)

	s.clock = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	spoof.WithClock(func() time.Time { return s.clock })

	s.service, err = NewService(
		s.registry, NewInMemoryStore(), biometric.NewMockExtractor(), commits,
		verifier, spoof, proof.NewSimulationEngine(logger), logger,
		WithClock(func() time.Time { return s.clock }),
	)
	s.Require().NoError(err)

	s.owner = id.OwnerID(uuid.New())
	s.org = id.OrgID(uuid.New())
	s.ctx = context.Background()
}

func (s *OrchestratorSuite) enroll(owner id.OwnerID, samples ...BiometricSample) ([]EnrollmentResult, error) {
	return s.service.Enroll(s.ctx, EnrollParams{Owner: owner, Org: s.org, Samples: samples})
}

func campusSignals() location.Signals {
	return location.Signals{
		GPS: &location.GPSSignal{Point: location.Point{Lat: 37.7749, Lng: -122.4194}, AccuracyM: 5},
	}
}

func (s *OrchestratorSuite) TestEnroll() {
	s.Run("returns commitment, nullifier and encrypted salt per biometric", func() {
		results, err := s.enroll(s.owner,
			BiometricSample{Type: id.BiometricFace, Data: []byte("face-1")},
			BiometricSample{Type: id.BiometricFingerprint, Data: []byte("finger-1")},
		)
		s.Require().NoError(err)
		s.Require().Len(results, 2)
		for _, res := range results {
			s.NotEmpty(res.Commitment)
			s.NotEmpty(res.Nullifier)
			s.NotEmpty(res.EncryptedSalt)
		}
		s.NotEqual(results[0].Nullifier, results[1].Nullifier)

		existing, err := s.service.GetUniquenessStatus(s.ctx, results[0].Commitment, id.BiometricFace)
		s.Require().NoError(err)
		s.Require().NotNil(existing)
		s.Equal(s.owner, existing.OwnerID)
	})

	s.Run("rejects an empty sample list", func() {
		_, err := s.enroll(s.owner)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})
}

// Same physical biometric, different owner: salts differ so the commitments
// differ, but the nullifier collides across owners and organizations.
func (s *OrchestratorSuite) TestEnrollSameBiometricDifferentOwner() {
	_, err := s.enroll(s.owner, BiometricSample{Type: id.BiometricFace, Data: []byte("shared-face")})
	s.Require().NoError(err)

	_, err = s.enroll(id.OwnerID(uuid.New()), BiometricSample{Type: id.BiometricFace, Data: []byte("shared-face")})
	var dup *registry.NullifierDuplicateError
	s.Require().ErrorAs(err, &dup)
	s.Equal(s.org, dup.OrgID)
}

func (s *OrchestratorSuite) TestEnrollSecondTypeConflictRollsBack() {
	_, err := s.enroll(s.owner, BiometricSample{Type: id.BiometricFace, Data: []byte("face-a")})
	s.Require().NoError(err)

	// A different face sample passes both uniqueness checks, but the owner
	// already holds a face enrollment; the registration must be unwound.
	results, err := s.enroll(s.owner, BiometricSample{Type: id.BiometricFace, Data: []byte("face-b")})
	s.Require().Nil(results)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *OrchestratorSuite) TestMarkAttendance() {
	enrolled, err := s.enroll(s.owner, BiometricSample{Type: id.BiometricFace, Data: []byte("face-mark")})
	s.Require().NoError(err)

	s.Run("issues a verifiable proof for a valid attempt", func() {
		attendanceProof, err := s.service.MarkAttendance(s.ctx, MarkParams{
			Owner:   s.owner,
			Org:     s.org,
			Type:    id.BiometricFace,
			Sample:  []byte("face-mark"),
			Signals: campusSignals(),
		})
		s.Require().NoError(err)
		s.Equal(enrolled[0].Commitment, attendanceProof.PublicSignals[0])
		s.Equal(enrolled[0].Nullifier, attendanceProof.PublicSignals[1])
		s.Equal("37.775", attendanceProof.Metadata.Latitude)

		ok, err := s.service.VerifyAttendanceProof(s.ctx, attendanceProof)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("a mutated public signal fails verification", func() {
		attendanceProof, err := s.service.MarkAttendance(s.ctx, MarkParams{
			Owner: s.owner, Org: s.org, Type: id.BiometricFace,
			Sample: []byte("face-mark"), Signals: campusSignals(),
		})
		s.Require().NoError(err)

		attendanceProof.PublicSignals[2] = "31337"
		ok, err := s.service.VerifyAttendanceProof(s.ctx, attendanceProof)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("rejects an out-of-fence attempt before any proving work", func() {
		_, err := s.service.MarkAttendance(s.ctx, MarkParams{
			Owner: s.owner, Org: s.org, Type: id.BiometricFace,
			Sample: []byte("face-mark"),
			Signals: location.Signals{
				GPS: &location.GPSSignal{Point: location.Point{Lat: 48.8566, Lng: 2.3522}, AccuracyM: 5},
			},
		})
		var rejected *LocationRejectedError
		s.Require().ErrorAs(err, &rejected)
		s.False(rejected.Valid)
	})

	s.Run("rejects a sample that does not match the enrollment", func() {
		_, err := s.service.MarkAttendance(s.ctx, MarkParams{
			Owner: s.owner, Org: s.org, Type: id.BiometricFace,
			Sample: []byte("someone-else"), Signals: campusSignals(),
		})
		s.True(dErrors.Is(err, dErrors.CodeRejected))
	})

	s.Run("rejects an owner with no enrollment", func() {
		_, err := s.service.MarkAttendance(s.ctx, MarkParams{
			Owner: id.OwnerID(uuid.New()), Org: s.org, Type: id.BiometricFace,
			Sample: []byte("face-mark"), Signals: campusSignals(),
		})
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

// A WiFi-only attempt has no coordinates; the proof must bind to the
// absent-location sentinel rather than a default (0,0) fix.
func (s *OrchestratorSuite) TestMarkAttendanceWithoutGPS() {
	_, err := s.enroll(s.owner, BiometricSample{Type: id.BiometricFace, Data: []byte("face-wifi")})
	s.Require().NoError(err)

	attendanceProof, err := s.service.MarkAttendance(s.ctx, MarkParams{
		Owner: s.owner, Org: s.org, Type: id.BiometricFace,
		Sample: []byte("face-wifi"),
		Signals: location.Signals{
			WiFi: &location.WiFiSignal{Networks: []location.WiFiNetwork{
				{BSSID: "aa:bb:cc:dd:ee:01", SSID: "campus-net", RSSI: -55},
			}},
		},
	})
	s.Require().NoError(err)

	sentinel, err := proof.AbsentLocationHash()
	s.Require().NoError(err)
	nullIsland, err := proof.LocationHash(0, 0)
	s.Require().NoError(err)
	s.Equal(sentinel.String(), attendanceProof.PublicSignals[2])
	s.NotEqual(nullIsland.String(), attendanceProof.PublicSignals[2])
	s.Empty(attendanceProof.Metadata.Latitude)

	ok, err := s.service.VerifyAttendanceProof(s.ctx, attendanceProof)
	s.Require().NoError(err)
	s.True(ok)
}

// A geofence-valid attempt still fails when the owner was just seen 100km
// away: the anti-spoofing gate is independent of geofence validity.
func (s *OrchestratorSuite) TestMarkAttendanceImpossibleTravel() {
	_, err := s.enroll(s.owner, BiometricSample{Type: id.BiometricFace, Data: []byte("face-travel")})
	s.Require().NoError(err)

	s.Require().NoError(s.lastSeen.Put(s.ctx, s.owner, location.Observation{
		Point: location.Point{Lat: 38.6749, Lng: -122.4194}, // ~100km north
		Seen:  s.clock.Add(-time.Minute),
	}))

	signals := campusSignals()
	signals.Timestamp = s.clock
	_, err = s.service.MarkAttendance(s.ctx, MarkParams{
		Owner: s.owner, Org: s.org, Type: id.BiometricFace,
		Sample: []byte("face-travel"), Signals: signals,
	})
	var rejected *LocationRejectedError
	s.Require().ErrorAs(err, &rejected)
	s.True(rejected.Valid) // the fence check itself passed
	s.GreaterOrEqual(rejected.Assessment.Risk, location.RiskThreshold)
	s.Equal(location.AnomalyImpossibleTravel, rejected.Assessment.Anomalies[0].Kind)
}

func (s *OrchestratorSuite) TestVerifyAttendanceProofNil() {
	_, err := s.service.VerifyAttendanceProof(s.ctx, nil)
	s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
}
