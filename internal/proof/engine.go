// Package proof generates and verifies attendance proofs binding a biometric
// commitment and nullifier to a location, time, and organization.
//
// Two strategies implement the same Engine contract: Simulation synthesizes
// structurally valid but non-cryptographic proofs, Real drives a Groth16
// backend over the attendance circuit. The strategy is chosen once at
// process construction and never switched mid-flight.
package proof

import (
	"context"
	"fmt"
	"math/big"
	"time"

	id "presentia/pkg/domain"

	"presentia/internal/biometric"
)

// Strategy selects the proving implementation. Decided once at startup from
// configuration; there is no runtime toggle.
type Strategy string

const (
	StrategySimulation Strategy = "simulation"
	StrategyReal       Strategy = "real"
)

// CircuitArtifactsMissingError reports absent or unreadable circuit
// artifacts (constraint system, proving key, verification key). This is a
// fatal configuration fault: the real strategy never silently falls back to
// simulation.
type CircuitArtifactsMissingError struct {
	Path  string
	cause error
}

func (e *CircuitArtifactsMissingError) Error() string {
	return fmt.Sprintf("circuit artifacts missing or unreadable at %s: %v", e.Path, e.cause)
}

func (e *CircuitArtifactsMissingError) Unwrap() error { return e.cause }

// Request carries the private and public inputs for one proof generation.
// Features and Salt are private witnesses used only by the real strategy;
// the hashes are public bindings shared by both.
type Request struct {
	Features biometric.FeatureVector
	Salt     *big.Int

	Commitment       *big.Int
	Nullifier        *big.Int
	LocationHash     *big.Int
	TimestampHash    *big.Int
	OrganizationHash *big.Int
}

// Metadata rides alongside a proof for audit display. Location is already
// privacy-rounded; no raw coordinates appear here.
type Metadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	Latitude    string    `json:"latitude,omitempty"`
	Longitude   string    `json:"longitude,omitempty"`
	Protocol    string    `json:"protocol"`
}

// AttendanceProof is the immutable result of one attendance-marking attempt.
// Verification is idempotent and may be repeated by any relying party.
type AttendanceProof struct {
	ID            id.ProofID `json:"id"`
	Blob          []byte     `json:"proof"`
	PublicSignals []string   `json:"public_signals"`
	Metadata      Metadata   `json:"metadata"`
}

// Engine is the strategy-agnostic proving contract the orchestrator uses.
//
// Verify returns (false, nil) for anything malformed: wrong arity,
// unparseable signals, corrupt blobs. The error return is reserved for
// system faults, so callers can distinguish "proof rejected" from "could
// not verify".
type Engine interface {
	Strategy() Strategy
	Generate(ctx context.Context, req Request) (*AttendanceProof, error)
	Verify(ctx context.Context, blob []byte, publicSignals []string) (bool, error)
}
