package proof

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"presentia/internal/field"
	id "presentia/pkg/domain"
)

// simProtocolTag marks simulation proofs so they can never be mistaken for
// real ones downstream.
const simProtocolTag = "groth16-simulation"

// simProof mirrors the shape of a serialized Groth16 proof (three
// curve-point-shaped triples plus a protocol tag) without any cryptographic
// content. Binding is a MiMC digest of the public signals taken at
// generation time; mutating any signal breaks it.
type simProof struct {
	PiA      [3]string    `json:"pi_a"`
	PiB      [3][2]string `json:"pi_b"`
	PiC      [3]string    `json:"pi_c"`
	Protocol string       `json:"protocol"`
	Curve    string       `json:"curve"`
	Binding  string       `json:"binding"`
}

// SimulationEngine synthesizes structurally valid proofs with no soundness.
//
// This mode carries NO security guarantees: Verify checks well-formedness
// and signal binding only. It exists for environments without circuit
// artifacts and is announced in the logs at construction.
type SimulationEngine struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewSimulationEngine(logger *slog.Logger) *SimulationEngine {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("proof engine running in SIMULATION mode: proofs are structurally valid but carry no cryptographic soundness")
	return &SimulationEngine{logger: logger, now: time.Now}
}

func (e *SimulationEngine) Strategy() Strategy { return StrategySimulation }

// Generate produces a simulated proof over the reduced public-signal set
// [commitment, nullifier, locationHash, timestampHash]. Private inputs in
// the request are ignored.
func (e *SimulationEngine) Generate(_ context.Context, req Request) (*AttendanceProof, error) {
	signals, err := signalStrings(req.Commitment, req.Nullifier, req.LocationHash, req.TimestampHash)
	if err != nil {
		return nil, err
	}

	binding, err := bindSignals(signals)
	if err != nil {
		return nil, err
	}

	// Fill the point slots with a deterministic MiMC chain off the binding
	// so the proof looks shaped like the real thing without pretending to
	// randomness it does not have.
	points := make([]string, 8)
	chain := binding
	for i := range points {
		chain, err = field.Hash(chain, big.NewInt(1))
		if err != nil {
			return nil, err
		}
		points[i] = chain.String()
	}
	p := simProof{
		PiA:      [3]string{points[0], points[1], "1"},
		PiB:      [3][2]string{{points[2], points[3]}, {points[4], points[5]}, {"1", "0"}},
		PiC:      [3]string{points[6], points[7], "1"},
		Protocol: simProtocolTag,
		Curve:    "bn128",
		Binding:  binding.String(),
	}
	blob, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal simulated proof: %w", err)
	}

	return &AttendanceProof{
		ID:            id.ProofID(uuid.New()),
		Blob:          blob,
		PublicSignals: signals,
		Metadata: Metadata{
			GeneratedAt: e.now(),
			Protocol:    simProtocolTag,
		},
	}, nil
}

// Verify checks structural well-formedness and that the signals still match
// the generation-time binding. It provides NO soundness.
func (e *SimulationEngine) Verify(_ context.Context, blob []byte, publicSignals []string) (bool, error) {
	var p simProof
	if err := json.Unmarshal(blob, &p); err != nil {
		return false, nil
	}
	if p.Protocol != simProtocolTag {
		return false, nil
	}
	for _, coord := range p.PiA {
		if coord == "" {
			return false, nil
		}
	}
	for _, pair := range p.PiB {
		if pair[0] == "" || pair[1] == "" {
			return false, nil
		}
	}
	for _, coord := range p.PiC {
		if coord == "" {
			return false, nil
		}
	}
	if len(publicSignals) != 4 {
		return false, nil
	}

	binding, err := bindSignals(publicSignals)
	if err != nil {
		return false, nil
	}
	return binding.String() == p.Binding, nil
}

func signalStrings(elems ...*big.Int) ([]string, error) {
	out := make([]string, len(elems))
	for i, x := range elems {
		reduced, err := field.Reduce(x)
		if err != nil {
			return nil, err
		}
		out[i] = reduced.String()
	}
	return out, nil
}

func bindSignals(signals []string) (*big.Int, error) {
	elems := make([]*big.Int, len(signals))
	for i, s := range signals {
		x, err := field.Parse(s)
		if err != nil {
			return nil, err
		}
		elems[i] = x
	}
	return field.Hash(elems...)
}
