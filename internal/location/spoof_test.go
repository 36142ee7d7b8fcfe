package location

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "presentia/pkg/domain"
)

type SpoofDetectorSuite struct {
	suite.Suite
	store    *InMemoryLastSeen
	detector *SpoofDetector
	owner    id.OwnerID
	ctx      context.Context
}

func TestSpoofDetectorSuite(t *testing.T) {
	suite.Run(t, new(SpoofDetectorSuite))
}

func (s *SpoofDetectorSuite) SetupTest() {
	s.store = NewInMemoryLastSeen()
	var err error
	s.detector, err = NewSpoofDetector(s.store, []string{"185.220.0.0/16"}, slog.Default())
	s.Require().NoError(err)
	s.owner = id.OwnerID(uuid.New())
	s.ctx = context.Background()
}

func (s *SpoofDetectorSuite) TestImpossibleTravel() {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s.detector.WithClock(func() time.Time { return base })

	// First fix from San Francisco is accepted and remembered.
	first := Signals{
		GPS:       &GPSSignal{Point: Point{Lat: 37.7749, Lng: -122.4194}, AccuracyM: 5},
		Timestamp: base,
	}
	assessment, err := s.detector.Assess(s.ctx, s.owner, first)
	s.Require().NoError(err)
	s.False(assessment.Rejected())
	s.Empty(assessment.Anomalies)

	// 100km north 60 seconds later: ~1,667 m/s.
	second := Signals{
		GPS:       &GPSSignal{Point: Point{Lat: 38.6749, Lng: -122.4194}, AccuracyM: 5},
		Timestamp: base.Add(time.Minute),
	}
	assessment, err = s.detector.Assess(s.ctx, s.owner, second)
	s.Require().NoError(err)
	s.Require().Len(assessment.Anomalies, 1)
	s.Equal(AnomalyImpossibleTravel, assessment.Anomalies[0].Kind)
	s.GreaterOrEqual(assessment.Risk, RiskThreshold)
	s.True(assessment.Rejected())

	s.Run("rejected fix does not overwrite last-seen", func() {
		prev, err := s.store.Get(s.ctx, s.owner)
		s.Require().NoError(err)
		s.Require().NotNil(prev)
		s.InDelta(37.7749, prev.Point.Lat, 1e-9)
	})
}

func (s *SpoofDetectorSuite) TestPlausibleTravelPasses() {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	point := Point{Lat: 37.7749, Lng: -122.4194}

	_, err := s.detector.Assess(s.ctx, s.owner, Signals{
		GPS: &GPSSignal{Point: point, AccuracyM: 5}, Timestamp: base,
	})
	s.Require().NoError(err)

	// ~1.1km in 10 minutes: walking pace.
	assessment, err := s.detector.Assess(s.ctx, s.owner, Signals{
		GPS:       &GPSSignal{Point: Point{Lat: 37.7849, Lng: -122.4194}, AccuracyM: 5},
		Timestamp: base.Add(10 * time.Minute),
	})
	s.Require().NoError(err)
	s.Empty(assessment.Anomalies)
}

func (s *SpoofDetectorSuite) TestMockLocation() {
	assessment, err := s.detector.Assess(s.ctx, s.owner, Signals{
		GPS: &GPSSignal{Point: Point{Lat: 37.7749, Lng: -122.4194}, AccuracyM: 5, MockLocation: true},
	})
	s.Require().NoError(err)
	s.Require().Len(assessment.Anomalies, 1)
	s.Equal(AnomalyMockLocation, assessment.Anomalies[0].Kind)
	s.True(assessment.Rejected())
}

func (s *SpoofDetectorSuite) TestVPNAddress() {
	assessment, err := s.detector.Assess(s.ctx, s.owner, Signals{
		IP: &IPSignal{Addr: "185.220.12.34"},
	})
	s.Require().NoError(err)
	s.Require().Len(assessment.Anomalies, 1)
	s.Equal(AnomalyVPN, assessment.Anomalies[0].Kind)
	s.False(assessment.Rejected()) // VPN alone stays under the threshold
}

func (s *SpoofDetectorSuite) TestImplausibleRSSI() {
	assessment, err := s.detector.Assess(s.ctx, s.owner, Signals{
		WiFi: &WiFiSignal{Networks: []WiFiNetwork{{BSSID: "aa:bb:cc:dd:ee:01", RSSI: -5}}},
	})
	s.Require().NoError(err)
	s.Require().Len(assessment.Anomalies, 1)
	s.Equal(AnomalyImplausibleSignal, assessment.Anomalies[0].Kind)
}

func (s *SpoofDetectorSuite) TestAnomaliesAccumulate() {
	assessment, err := s.detector.Assess(s.ctx, s.owner, Signals{
		IP:   &IPSignal{Addr: "185.220.12.34"},
		WiFi: &WiFiSignal{Networks: []WiFiNetwork{{BSSID: "aa:bb:cc:dd:ee:01", RSSI: -5}}},
	})
	s.Require().NoError(err)
	s.Len(assessment.Anomalies, 2)
	s.True(assessment.Rejected()) // 35 + 20 crosses the threshold
}

func TestNewSpoofDetectorRejectsBadCIDR(t *testing.T) {
	_, err := NewSpoofDetector(NewInMemoryLastSeen(), []string{"bogus"}, slog.Default())
	require.Error(t, err)
}
