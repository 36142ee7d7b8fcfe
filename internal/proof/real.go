package proof

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"presentia/internal/biometric"
	"presentia/internal/field"
	id "presentia/pkg/domain"
)

// Artifact file names inside the artifact directory, as written by zksetup.
const (
	ConstraintFile   = "attendance.r1cs"
	ProvingKeyFile   = "attendance.pk"
	VerifyingKeyFile = "attendance.vk"
)

const realProtocolTag = "groth16"

// RealEngine proves and verifies with the Groth16 backend over BN254.
// Proving is memory-heavy, so concurrent Generate calls are bounded by a
// weighted semaphore sized at construction.
type RealEngine struct {
	cs     constraint.ConstraintSystem
	pk     groth16.ProvingKey
	vk     groth16.VerifyingKey
	sem    *semaphore.Weighted
	logger *slog.Logger
	now    func() time.Time
}

// NewRealEngine loads the compiled constraint system and key pair from dir.
// Missing or unreadable artifacts surface as *CircuitArtifactsMissingError;
// there is no fallback to simulation.
func NewRealEngine(dir string, maxConcurrentProofs int64, logger *slog.Logger) (*RealEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrentProofs < 1 {
		maxConcurrentProofs = 1
	}

	cs := groth16.NewCS(ecc.BN254)
	if err := readArtifact(filepath.Join(dir, ConstraintFile), cs); err != nil {
		return nil, err
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readArtifact(filepath.Join(dir, ProvingKeyFile), pk); err != nil {
		return nil, err
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readArtifact(filepath.Join(dir, VerifyingKeyFile), vk); err != nil {
		return nil, err
	}

	logger.Info("circuit artifacts loaded",
		"dir", dir,
		"constraints", cs.GetNbConstraints(),
		"max_concurrent_proofs", maxConcurrentProofs)

	return &RealEngine{
		cs:     cs,
		pk:     pk,
		vk:     vk,
		sem:    semaphore.NewWeighted(maxConcurrentProofs),
		logger: logger,
		now:    time.Now,
	}, nil
}

func readArtifact(path string, into io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return &CircuitArtifactsMissingError{Path: path, cause: err}
	}
	defer f.Close()
	if _, err := into.ReadFrom(f); err != nil {
		return &CircuitArtifactsMissingError{Path: path, cause: err}
	}
	return nil
}

func (e *RealEngine) Strategy() Strategy { return StrategyReal }

// Generate proves the attendance circuit for the request's witnesses. The
// context bounds both the wait for a prover slot and is checked again before
// the (non-interruptible) proving call starts.
func (e *RealEngine) Generate(ctx context.Context, req Request) (*AttendanceProof, error) {
	assignment, err := e.assign(req)
	if err != nil {
		return nil, err
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for prover slot: %w", err)
	}
	defer e.sem.Release(1)

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}

	start := e.now()
	grothProof, err := groth16.Prove(e.cs, e.pk, witness)
	if err != nil {
		return nil, fmt.Errorf("groth16 prove: %w", err)
	}
	e.logger.DebugContext(ctx, "proof generated", "elapsed", time.Since(start).String())

	var buf bytes.Buffer
	if _, err := grothProof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}

	signals, err := signalStrings(req.Commitment, req.Nullifier, req.LocationHash, req.TimestampHash, req.OrganizationHash)
	if err != nil {
		return nil, err
	}

	return &AttendanceProof{
		ID:            id.ProofID(uuid.New()),
		Blob:          buf.Bytes(),
		PublicSignals: signals,
		Metadata: Metadata{
			GeneratedAt: e.now(),
			Protocol:    realProtocolTag,
		},
	}, nil
}

// Verify checks a serialized proof against its public signals. Any malformed
// input, signal-count mismatch or pairing failure yields (false, nil): a bad
// proof is a rejection, not a system fault.
func (e *RealEngine) Verify(ctx context.Context, blob []byte, publicSignals []string) (bool, error) {
	if len(publicSignals) != 5 {
		return false, nil
	}

	grothProof := groth16.NewProof(ecc.BN254)
	if _, err := grothProof.ReadFrom(bytes.NewReader(blob)); err != nil {
		return false, nil
	}

	var assignment AttendanceCircuit
	targets := []*frontend.Variable{
		&assignment.Commitment,
		&assignment.Nullifier,
		&assignment.LocationHash,
		&assignment.TimestampHash,
		&assignment.OrganizationHash,
	}
	for i, s := range publicSignals {
		x, err := field.Parse(s)
		if err != nil {
			return false, nil
		}
		*targets[i] = x
	}

	publicWitness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, nil
	}
	if err := groth16.Verify(grothProof, e.vk, publicWitness); err != nil {
		e.logger.DebugContext(ctx, "proof rejected", "error", err)
		return false, nil
	}
	return true, nil
}

func (e *RealEngine) assign(req Request) (*AttendanceCircuit, error) {
	if len(req.Features) != biometric.VectorLen {
		return nil, &field.MalformedInputError{Reason: fmt.Sprintf("feature vector must have %d elements", biometric.VectorLen)}
	}
	for _, part := range []*big.Int{req.Salt, req.Commitment, req.Nullifier, req.LocationHash, req.TimestampHash, req.OrganizationHash} {
		if part == nil {
			return nil, &field.MalformedInputError{Reason: "nil proof input"}
		}
	}

	assignment := &AttendanceCircuit{}
	assignment.Commitment = req.Commitment
	assignment.Nullifier = req.Nullifier
	assignment.LocationHash = req.LocationHash
	assignment.TimestampHash = req.TimestampHash
	assignment.OrganizationHash = req.OrganizationHash
	assignment.Salt = req.Salt
	for i, feature := range req.Features {
		reduced, err := field.Reduce(feature)
		if err != nil {
			return nil, err
		}
		assignment.Features[i] = reduced
	}
	return assignment, nil
}
