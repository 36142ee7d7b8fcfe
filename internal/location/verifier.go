package location

import (
	"context"
	"log/slog"
	"math"
	"net/netip"
	"strings"
	"time"

	pstrings "presentia/pkg/platform/strings"
)

// Method names a validation signal source.
type Method string

const (
	MethodGPS  Method = "gps"
	MethodWiFi Method = "wifi"
	MethodIP   Method = "ip"
)

// GPS accuracy and confidence thresholds.
const (
	maxGPSAccuracyM     = 50.0
	freeAccuracyM       = 10.0
	freeDistanceM       = 100.0
	accuracyPenaltyPerM = 2.0
	distancePenaltyPerM = 0.1
)

// WiFi confidence shape.
const (
	wifiBaseConfidence  = 90
	wifiWeakRSSI        = -70.0
	wifiFewMatchPenalty = 20
)

// IP is the weakest signal: fixed confidence, and when it is the only
// validating method the overall confidence stays at this value. Combined
// with a stronger method it adds at most a small bonus.
const (
	ipConfidence  = 60
	ipComboBonus  = 5
	maxConfidence = 100
)

// GPSSignal is a device-reported fix. MockLocation mirrors the OS-level
// "location from a mock provider" flag and feeds anti-spoofing, not validity.
type GPSSignal struct {
	Point        Point
	AccuracyM    float64
	MockLocation bool
}

// WiFiNetwork is one observed access point.
type WiFiNetwork struct {
	BSSID string
	SSID  string
	RSSI  float64
}

type WiFiSignal struct {
	Networks []WiFiNetwork
}

type IPSignal struct {
	Addr string
}

// Signals carries whatever evidence the device supplied; any subset may be
// nil. Timestamp is the device-reported capture time used for travel checks.
type Signals struct {
	GPS       *GPSSignal
	WiFi      *WiFiSignal
	IP        *IPSignal
	Timestamp time.Time
}

// MethodResult is the per-method detail in a verification result.
type MethodResult struct {
	Method     Method `json:"method"`
	Valid      bool   `json:"valid"`
	Confidence int    `json:"confidence"`
	Detail     string `json:"detail,omitempty"`
}

// Result is the outcome of one verification call. Valid is true when any
// method validated; Confidence is the maximum among validating methods with
// the IP-only cap applied. Raw coordinates never appear here.
type Result struct {
	Valid      bool           `json:"valid"`
	Confidence int            `json:"confidence"`
	Methods    []MethodResult `json:"methods"`
	Proof      *Artifact      `json:"proof,omitempty"`
}

// Verifier evaluates signals against a single geofence. Each call walks the
// methods in a fixed order (GPS, WiFi, IP); evaluation state lives only on
// the stack.
type Verifier struct {
	fence  Geofence
	cidrs  []netip.Prefix
	bssids map[string]struct{}
	logger *slog.Logger
	now    func() time.Time
}

func NewVerifier(fence Geofence, logger *slog.Logger) (*Verifier, error) {
	if err := fence.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	v := &Verifier{
		fence:  fence,
		bssids: make(map[string]struct{}, len(fence.AllowedBSSIDs)),
		logger: logger,
		now:    time.Now,
	}
	// Operator-supplied allow lists arrive messy: duplicates, stray
	// whitespace, mixed-case MACs.
	for _, mac := range pstrings.DedupeAndTrimLower(fence.AllowedBSSIDs) {
		v.bssids[mac] = struct{}{}
	}
	for _, cidr := range pstrings.DedupeAndTrim(fence.AllowedCIDRs) {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, err
		}
		v.cidrs = append(v.cidrs, prefix)
	}
	return v, nil
}

// Verify evaluates every present signal independently and combines them.
func (v *Verifier) Verify(ctx context.Context, signals Signals) (*Result, error) {
	result := &Result{}

	if signals.GPS != nil {
		result.Methods = append(result.Methods, v.evaluateGPS(*signals.GPS))
	}
	if signals.WiFi != nil {
		result.Methods = append(result.Methods, v.evaluateWiFi(*signals.WiFi))
	}
	if signals.IP != nil {
		result.Methods = append(result.Methods, v.evaluateIP(*signals.IP))
	}

	best := 0
	ipValid, otherValid := false, false
	for _, m := range result.Methods {
		if !m.Valid {
			continue
		}
		result.Valid = true
		if m.Confidence > best {
			best = m.Confidence
		}
		if m.Method == MethodIP {
			ipValid = true
		} else {
			otherValid = true
		}
	}
	switch {
	case ipValid && otherValid:
		// IP corroboration is worth at most a small bonus on top of the
		// strongest method.
		best = min(maxConfidence, best+ipComboBonus)
	case ipValid && !otherValid:
		best = min(best, ipConfidence)
	}
	result.Confidence = best

	if result.Valid {
		ts := signals.Timestamp
		if ts.IsZero() {
			ts = v.now()
		}
		artifact, err := NewArtifact(ts, result.Valid, strongestMethod(result.Methods), result.Confidence)
		if err != nil {
			return nil, err
		}
		result.Proof = artifact
	}

	v.logger.DebugContext(ctx, "location verified",
		"fence", v.fence.Name, "valid", result.Valid, "confidence", result.Confidence)
	return result, nil
}

func (v *Verifier) evaluateGPS(gps GPSSignal) MethodResult {
	if gps.AccuracyM > maxGPSAccuracyM {
		return MethodResult{Method: MethodGPS, Detail: "reported accuracy exceeds limit"}
	}

	distance := haversineM(gps.Point, v.fence.Center)
	inRadius := distance <= v.fence.RadiusM
	inPolygon := pointInPolygon(gps.Point, v.fence.Polygon)
	if !inRadius && !inPolygon {
		return MethodResult{Method: MethodGPS, Detail: "outside geofence"}
	}

	confidence := float64(maxConfidence)
	if gps.AccuracyM > freeAccuracyM {
		confidence -= (gps.AccuracyM - freeAccuracyM) * accuracyPenaltyPerM
	}
	if distance > freeDistanceM {
		confidence -= (distance - freeDistanceM) * distancePenaltyPerM
	}
	detail := "within radius"
	if !inRadius {
		detail = "inside polygon boundary"
	}
	return MethodResult{
		Method:     MethodGPS,
		Valid:      true,
		Confidence: int(math.Max(0, math.Round(confidence))),
		Detail:     detail,
	}
}

func (v *Verifier) evaluateWiFi(wifi WiFiSignal) MethodResult {
	var matches int
	var rssiSum float64
	for _, network := range wifi.Networks {
		if _, ok := v.bssids[strings.ToLower(network.BSSID)]; ok {
			matches++
			rssiSum += network.RSSI
		}
	}
	if matches == 0 {
		return MethodResult{Method: MethodWiFi, Detail: "no allow-listed access point observed"}
	}

	confidence := float64(wifiBaseConfidence)
	if avg := rssiSum / float64(matches); avg < wifiWeakRSSI {
		confidence -= wifiWeakRSSI - avg
	}
	if matches < 2 {
		confidence -= wifiFewMatchPenalty
	}
	return MethodResult{
		Method:     MethodWiFi,
		Valid:      true,
		Confidence: int(math.Max(0, math.Round(confidence))),
	}
}

func (v *Verifier) evaluateIP(ip IPSignal) MethodResult {
	addr, err := netip.ParseAddr(ip.Addr)
	if err != nil {
		return MethodResult{Method: MethodIP, Detail: "unparseable address"}
	}
	for _, prefix := range v.cidrs {
		if prefix.Contains(addr) {
			return MethodResult{Method: MethodIP, Valid: true, Confidence: ipConfidence}
		}
	}
	return MethodResult{Method: MethodIP, Detail: "address outside campus ranges"}
}

func strongestMethod(methods []MethodResult) Method {
	best := Method("")
	bestConf := -1
	for _, m := range methods {
		if m.Valid && m.Confidence > bestConf {
			best, bestConf = m.Method, m.Confidence
		}
	}
	return best
}
