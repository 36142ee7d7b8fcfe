package attendance

import (
	"fmt"
	"strings"

	"presentia/internal/location"
)

// LocationRejectedError reports an attendance attempt stopped at the
// location gate, before any biometric or proving work. It carries the
// anomaly detail for the audit trail; raw coordinates are not included.
type LocationRejectedError struct {
	Valid      bool
	Confidence int
	Assessment location.Assessment
}

func (e *LocationRejectedError) Error() string {
	if !e.Valid {
		return fmt.Sprintf("location not verified (confidence %d)", e.Confidence)
	}
	kinds := make([]string, len(e.Assessment.Anomalies))
	for i, anomaly := range e.Assessment.Anomalies {
		kinds[i] = string(anomaly.Kind)
	}
	return fmt.Sprintf("attendance rejected by anti-spoofing (risk %d: %s)",
		e.Assessment.Risk, strings.Join(kinds, ", "))
}
