package location

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
)

type VerifierSuite struct {
	suite.Suite
	verifier *Verifier
	ctx      context.Context
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

// Campus: 200m circle around the center plus a detached annex polygon about
// 1.5km north-east, outside the circle.
func (s *VerifierSuite) SetupTest() {
	fence := Geofence{
		Name:    "main-campus",
		Center:  Point{Lat: 37.7749, Lng: -122.4194},
		RadiusM: 200,
		Polygon: []Point{
			{Lat: 37.7860, Lng: -122.4100},
			{Lat: 37.7860, Lng: -122.4060},
			{Lat: 37.7890, Lng: -122.4060},
			{Lat: 37.7890, Lng: -122.4100},
		},
		AllowedBSSIDs: []string{"AA:BB:CC:DD:EE:01", "aa:bb:cc:dd:ee:02"},
		AllowedCIDRs:  []string{"10.20.0.0/16"},
	}
	var err error
	s.verifier, err = NewVerifier(fence, slog.Default())
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func (s *VerifierSuite) verify(signals Signals) *Result {
	result, err := s.verifier.Verify(s.ctx, signals)
	s.Require().NoError(err)
	return result
}

func (s *VerifierSuite) TestGPS() {
	s.Run("campus center with 5m accuracy scores full confidence", func() {
		result := s.verify(Signals{GPS: &GPSSignal{
			Point:     Point{Lat: 37.7749, Lng: -122.4194},
			AccuracyM: 5,
		}})
		s.True(result.Valid)
		s.Equal(100, result.Confidence)
		s.Require().NotNil(result.Proof)
	})

	s.Run("10km away is invalid", func() {
		result := s.verify(Signals{GPS: &GPSSignal{
			Point:     Point{Lat: 37.8650, Lng: -122.4194},
			AccuracyM: 5,
		}})
		s.False(result.Valid)
		s.Zero(result.Confidence)
		s.Nil(result.Proof)
	})

	s.Run("accuracy above 50m rejects the fix outright", func() {
		result := s.verify(Signals{GPS: &GPSSignal{
			Point:     Point{Lat: 37.7749, Lng: -122.4194},
			AccuracyM: 60,
		}})
		s.False(result.Valid)
	})

	s.Run("inside the annex polygon but outside the circle is valid", func() {
		result := s.verify(Signals{GPS: &GPSSignal{
			Point:     Point{Lat: 37.7875, Lng: -122.4080},
			AccuracyM: 5,
		}})
		s.True(result.Valid)
		s.Equal("inside polygon boundary", result.Methods[0].Detail)
	})

	s.Run("confidence degrades with poor accuracy", func() {
		sharp := s.verify(Signals{GPS: &GPSSignal{
			Point:     Point{Lat: 37.7749, Lng: -122.4194},
			AccuracyM: 5,
		}})
		blurry := s.verify(Signals{GPS: &GPSSignal{
			Point:     Point{Lat: 37.7749, Lng: -122.4194},
			AccuracyM: 40,
		}})
		s.True(blurry.Valid)
		s.Less(blurry.Confidence, sharp.Confidence)
	})
}

// The diamond's east and west vertices lie exactly on the test latitude, so
// the ray cast passes straight through them. The half-open edge rule counts
// each such vertex once: between the vertices is inside, beyond either is out.
func (s *VerifierSuite) TestPolygonVertexOnRay() {
	fence := Geofence{
		Name:    "diamond-annex",
		Center:  Point{Lat: 37.7749, Lng: -122.4194},
		RadiusM: 50,
		Polygon: []Point{
			{Lat: 37.7800, Lng: -122.4000},
			{Lat: 37.7820, Lng: -122.3980},
			{Lat: 37.7840, Lng: -122.4000},
			{Lat: 37.7820, Lng: -122.4020},
		},
	}
	verifier, err := NewVerifier(fence, slog.Default())
	s.Require().NoError(err)

	verify := func(lng float64) *Result {
		result, err := verifier.Verify(s.ctx, Signals{GPS: &GPSSignal{
			Point:     Point{Lat: 37.7820, Lng: lng},
			AccuracyM: 5,
		}})
		s.Require().NoError(err)
		return result
	}

	s.Run("between the level vertices is inside", func() {
		result := verify(-122.4000)
		s.True(result.Valid)
		s.Equal("inside polygon boundary", result.Methods[0].Detail)
	})

	s.Run("west of both level vertices is outside", func() {
		s.False(verify(-122.4100).Valid)
	})

	s.Run("east of both level vertices is outside", func() {
		s.False(verify(-122.3900).Valid)
	})
}

func (s *VerifierSuite) TestWiFi() {
	s.Run("two strong allow-listed networks score high", func() {
		result := s.verify(Signals{WiFi: &WiFiSignal{Networks: []WiFiNetwork{
			{BSSID: "aa:bb:cc:dd:ee:01", RSSI: -50},
			{BSSID: "AA:BB:CC:DD:EE:02", RSSI: -55},
			{BSSID: "ff:ff:ff:ff:ff:ff", RSSI: -40},
		}}})
		s.True(result.Valid)
		s.Equal(90, result.Confidence)
	})

	s.Run("single match is penalized", func() {
		result := s.verify(Signals{WiFi: &WiFiSignal{Networks: []WiFiNetwork{
			{BSSID: "aa:bb:cc:dd:ee:01", RSSI: -50},
		}}})
		s.True(result.Valid)
		s.Equal(70, result.Confidence)
	})

	s.Run("weak signal is penalized", func() {
		result := s.verify(Signals{WiFi: &WiFiSignal{Networks: []WiFiNetwork{
			{BSSID: "aa:bb:cc:dd:ee:01", RSSI: -85},
			{BSSID: "aa:bb:cc:dd:ee:02", RSSI: -85},
		}}})
		s.True(result.Valid)
		s.Equal(75, result.Confidence)
	})

	s.Run("no allow-listed network is invalid", func() {
		result := s.verify(Signals{WiFi: &WiFiSignal{Networks: []WiFiNetwork{
			{BSSID: "ff:ff:ff:ff:ff:ff", RSSI: -40},
		}}})
		s.False(result.Valid)
	})
}

func (s *VerifierSuite) TestIP() {
	s.Run("campus range validates at fixed confidence", func() {
		result := s.verify(Signals{IP: &IPSignal{Addr: "10.20.1.5"}})
		s.True(result.Valid)
		s.Equal(ipConfidence, result.Confidence)
	})

	s.Run("outside range is invalid", func() {
		result := s.verify(Signals{IP: &IPSignal{Addr: "8.8.8.8"}})
		s.False(result.Valid)
	})

	s.Run("IP alone never exceeds its cap", func() {
		result := s.verify(Signals{IP: &IPSignal{Addr: "10.20.1.5"}})
		s.LessOrEqual(result.Confidence, ipConfidence)
	})

	s.Run("IP adds a capped bonus on top of GPS", func() {
		gpsOnly := s.verify(Signals{GPS: &GPSSignal{
			Point:     Point{Lat: 37.7749, Lng: -122.4194},
			AccuracyM: 25,
		}})
		both := s.verify(Signals{
			GPS: &GPSSignal{Point: Point{Lat: 37.7749, Lng: -122.4194}, AccuracyM: 25},
			IP:  &IPSignal{Addr: "10.20.1.5"},
		})
		s.Equal(gpsOnly.Confidence+ipComboBonus, both.Confidence)

		capped := s.verify(Signals{
			GPS: &GPSSignal{Point: Point{Lat: 37.7749, Lng: -122.4194}, AccuracyM: 5},
			IP:  &IPSignal{Addr: "10.20.1.5"},
		})
		s.Equal(maxConfidence, capped.Confidence)
	})
}

func (s *VerifierSuite) TestNoSignals() {
	result := s.verify(Signals{})
	s.False(result.Valid)
	s.Empty(result.Methods)
}

func (s *VerifierSuite) TestNewVerifierValidation() {
	_, err := NewVerifier(Geofence{RadiusM: 0}, slog.Default())
	s.Error(err)

	_, err = NewVerifier(Geofence{RadiusM: 100, AllowedCIDRs: []string{"not-a-cidr"}}, slog.Default())
	s.Error(err)
}
