// Package ratelimit provides per-IP request limiting for the public API.
// Biometric endpoints are the abuse target here: repeated enrollment or
// attendance attempts are how an attacker enumerates commitments, so those
// routes get a much tighter budget than plain reads.
package ratelimit

import (
	"context"
	"time"
)

// Class categorizes endpoints for differentiated limits.
type Class string

const (
	// ClassBiometric covers enrollment, attendance marking and proof
	// verification.
	ClassBiometric Class = "biometric"
	// ClassRead covers pre-flight lookups such as uniqueness checks.
	ClassRead Class = "read"
)

// Limit is a request budget over a window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// DefaultLimits keys budgets by endpoint class.
var DefaultLimits = map[Class]Limit{
	ClassBiometric: {Requests: 30, Window: time.Minute},
	ClassRead:      {Requests: 100, Window: time.Minute},
}

// Result is the outcome of a limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// BucketStore counts requests per key. Implementations must be safe for
// concurrent use.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
