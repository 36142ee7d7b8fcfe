// Package location validates physical presence from GPS, WiFi and IP
// signals against configured campus geofences, and flags spoofing signals
// for the attendance gate.
package location

import (
	"math"
	"net/netip"

	dErrors "presentia/pkg/domain-errors"
)

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geofence describes one campus: a circular region, an optional polygon
// boundary, and the network allow-lists. A point is inside the fence when it
// is within the radius OR inside the polygon.
type Geofence struct {
	Name    string  `json:"name"`
	Center  Point   `json:"center"`
	RadiusM float64 `json:"radius_m"`
	Polygon []Point `json:"polygon,omitempty"`

	AllowedBSSIDs []string `json:"allowed_bssids,omitempty"`
	AllowedCIDRs  []string `json:"allowed_cidrs,omitempty"`
}

// Validate checks the fence is usable: a positive radius, a polygon of at
// least three vertices when present, and parseable CIDRs.
func (g Geofence) Validate() error {
	if g.RadiusM <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "geofence radius must be positive")
	}
	if len(g.Polygon) > 0 && len(g.Polygon) < 3 {
		return dErrors.New(dErrors.CodeInvalidInput, "geofence polygon needs at least 3 vertices")
	}
	for _, cidr := range g.AllowedCIDRs {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid geofence CIDR")
		}
	}
	return nil
}

const earthRadiusM = 6371000

// haversineM returns the great-circle distance between two points in meters.
func haversineM(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// pointInPolygon runs the standard ray-casting test with the alternating
// crossing rule; a vertex exactly on the horizontal ray counts once via the
// half-open edge condition.
func pointInPolygon(p Point, polygon []Point) bool {
	if len(polygon) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
		vi, vj := polygon[i], polygon[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) {
			cross := (vj.Lng-vi.Lng)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lng
			if p.Lng < cross {
				inside = !inside
			}
		}
	}
	return inside
}
