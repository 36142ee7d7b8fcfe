package proof

import (
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"presentia/internal/field"
	id "presentia/pkg/domain"
)

// Deliberate precision losses applied before hashing. Generation and any
// later recomputation for verification must use these same helpers, or the
// hashes will not line up.
const (
	// coordPrecision rounds coordinates to 3 decimal degrees (~110 m).
	coordPrecision = 1000
	// timeGranularity floors timestamps to the minute.
	timeGranularity = time.Minute
)

// RoundCoord rounds a coordinate to 3 decimal degrees and returns the
// fixed-point value (degrees × 1000). The rounded value is the only form
// that may leave this package.
func RoundCoord(deg float64) int64 {
	return int64(math.Round(deg * coordPrecision))
}

// FormatCoord renders a rounded coordinate for display and metadata.
func FormatCoord(deg float64) string {
	return strconv.FormatFloat(float64(RoundCoord(deg))/coordPrecision, 'f', 3, 64)
}

// LocationHash hashes a privacy-rounded coordinate pair into the field.
// Negative fixed-point values are offset into the non-negative range before
// canonicalization, keeping southern and western hemispheres distinct.
func LocationHash(lat, lng float64) (*big.Int, error) {
	const offset = 360 * coordPrecision
	return field.Hash(
		big.NewInt(RoundCoord(lat)+offset),
		big.NewInt(RoundCoord(lng)+offset),
	)
}

// AbsentLocationHash binds proofs for attempts validated without a GPS fix
// (WiFi or IP only). The sentinel inputs sit below the offset range of
// LocationHash, so no real coordinate pair, (0,0) included, can collide
// with it.
func AbsentLocationHash() (*big.Int, error) {
	return field.Hash(big.NewInt(-1), big.NewInt(-1))
}

// TimestampHash floors the timestamp to the minute and hashes the unix
// value. Seconds within the same minute hash identically.
func TimestampHash(t time.Time) (*big.Int, error) {
	return field.Hash(big.NewInt(t.Truncate(timeGranularity).Unix()))
}

// OrganizationHash hashes an organization ID into the field.
func OrganizationHash(org id.OrgID) (*big.Int, error) {
	raw := uuid.UUID(org)
	return field.HashBytes(raw[:])
}
