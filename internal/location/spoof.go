package location

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	id "presentia/pkg/domain"
)

// Anomaly kinds and their severities. Severities are additive; an attempt
// whose cumulative risk reaches RiskThreshold is rejected by the
// orchestrator regardless of geofence validity.
type AnomalyKind string

const (
	AnomalyImpossibleTravel  AnomalyKind = "IMPOSSIBLE_TRAVEL"
	AnomalyVPN               AnomalyKind = "VPN_OR_PROXY"
	AnomalyMockLocation      AnomalyKind = "MOCK_LOCATION"
	AnomalyImplausibleSignal AnomalyKind = "IMPLAUSIBLE_SIGNAL"
)

const (
	severityImpossibleTravel  = 60
	severityVPN               = 35
	severityMockLocation      = 50
	severityImplausibleSignal = 20

	// RiskThreshold is the cumulative severity at which an attempt is
	// rejected.
	RiskThreshold = 50

	// maxPlausibleSpeedMS is ground-travel speed; anything faster between
	// two observations is flagged.
	maxPlausibleSpeedMS = 50.0

	// Plausible received-signal-strength bounds in dBm.
	minPlausibleRSSI = -95.0
	maxPlausibleRSSI = -15.0
)

// Anomaly is one detected spoofing signal.
type Anomaly struct {
	Kind     AnomalyKind `json:"kind"`
	Severity int         `json:"severity"`
	Detail   string      `json:"detail"`
}

// Assessment is the anti-spoofing verdict for one attempt.
type Assessment struct {
	Anomalies []Anomaly `json:"anomalies,omitempty"`
	Risk      int       `json:"risk"`
}

// Rejected reports whether the cumulative risk crosses the threshold.
func (a Assessment) Rejected() bool { return a.Risk >= RiskThreshold }

// Observation is the last accepted location fix for an owner, kept for
// impossible-travel detection. Only the rounded point and time survive.
type Observation struct {
	Point Point     `json:"point"`
	Seen  time.Time `json:"seen"`
}

// LastSeenStore remembers the most recent observation per owner. Lookup
// misses return (nil, nil).
type LastSeenStore interface {
	Get(ctx context.Context, owner id.OwnerID) (*Observation, error)
	Put(ctx context.Context, owner id.OwnerID, obs Observation) error
}

// SpoofDetector runs the anti-spoofing heuristics. It is separate from the
// validity decision: the orchestrator consumes both.
type SpoofDetector struct {
	lastSeen  LastSeenStore
	vpnRanges []netip.Prefix
	logger    *slog.Logger
	now       func() time.Time
}

func NewSpoofDetector(lastSeen LastSeenStore, vpnCIDRs []string, logger *slog.Logger) (*SpoofDetector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &SpoofDetector{lastSeen: lastSeen, logger: logger, now: time.Now}
	for _, cidr := range vpnCIDRs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid VPN CIDR %q: %w", cidr, err)
		}
		d.vpnRanges = append(d.vpnRanges, prefix)
	}
	return d, nil
}

// WithClock overrides the detector's time source. Used by tests.
func (d *SpoofDetector) WithClock(now func() time.Time) *SpoofDetector {
	d.now = now
	return d
}

// Assess runs every heuristic over the signals and, when the attempt is not
// rejected, records the fix as the owner's new last-seen observation.
func (d *SpoofDetector) Assess(ctx context.Context, owner id.OwnerID, signals Signals) (Assessment, error) {
	var assessment Assessment
	ts := signals.Timestamp
	if ts.IsZero() {
		ts = d.now()
	}

	if signals.GPS != nil {
		if signals.GPS.MockLocation {
			assessment.add(Anomaly{
				Kind:     AnomalyMockLocation,
				Severity: severityMockLocation,
				Detail:   "device reports a mock location provider",
			})
		}
		travel, err := d.checkTravel(ctx, owner, signals.GPS.Point, ts)
		if err != nil {
			return Assessment{}, err
		}
		if travel != nil {
			assessment.add(*travel)
		}
	}

	if signals.IP != nil {
		if addr, err := netip.ParseAddr(signals.IP.Addr); err == nil {
			for _, prefix := range d.vpnRanges {
				if prefix.Contains(addr) {
					assessment.add(Anomaly{
						Kind:     AnomalyVPN,
						Severity: severityVPN,
						Detail:   "caller address inside a known VPN/proxy range",
					})
					break
				}
			}
		}
	}

	if signals.WiFi != nil {
		for _, network := range signals.WiFi.Networks {
			if network.RSSI < minPlausibleRSSI || network.RSSI > maxPlausibleRSSI {
				assessment.add(Anomaly{
					Kind:     AnomalyImplausibleSignal,
					Severity: severityImplausibleSignal,
					Detail:   fmt.Sprintf("RSSI %.0f dBm outside plausible range", network.RSSI),
				})
				break
			}
		}
	}

	if assessment.Rejected() {
		d.logger.WarnContext(ctx, "attendance attempt flagged",
			"owner_id", owner.String(), "risk", assessment.Risk, "anomalies", len(assessment.Anomalies))
		return assessment, nil
	}

	if signals.GPS != nil && d.lastSeen != nil {
		if err := d.lastSeen.Put(ctx, owner, Observation{Point: signals.GPS.Point, Seen: ts}); err != nil {
			// Losing a last-seen write weakens the next travel check but
			// must not fail the current attempt.
			d.logger.WarnContext(ctx, "last-seen update failed", "owner_id", owner.String(), "error", err)
		}
	}
	return assessment, nil
}

func (d *SpoofDetector) checkTravel(ctx context.Context, owner id.OwnerID, point Point, ts time.Time) (*Anomaly, error) {
	if d.lastSeen == nil {
		return nil, nil
	}
	prev, err := d.lastSeen.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("last-seen lookup: %w", err)
	}
	if prev == nil {
		return nil, nil
	}

	elapsed := ts.Sub(prev.Seen).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}
	distance := haversineM(prev.Point, point)
	speed := distance / elapsed
	if speed <= maxPlausibleSpeedMS {
		return nil, nil
	}
	return &Anomaly{
		Kind:     AnomalyImpossibleTravel,
		Severity: severityImpossibleTravel,
		Detail:   fmt.Sprintf("%.0f m in %.0f s implies %.0f m/s", distance, elapsed, speed),
	}, nil
}

func (a *Assessment) add(anomaly Anomaly) {
	a.Anomalies = append(a.Anomalies, anomaly)
	a.Risk += anomaly.Severity
}
