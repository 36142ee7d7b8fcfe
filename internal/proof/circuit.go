package proof

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"presentia/internal/biometric"
)

// AttendanceCircuit proves knowledge of a feature vector and salt such that
//
//	Commitment = MiMC(Features || Salt)
//	Nullifier  = MiMC(Features)
//
// without revealing either private witness. LocationHash, TimestampHash and
// OrganizationHash carry no constraints of their own: they are public inputs
// so the Groth16 verification equation binds the proof to a specific place,
// minute and organization. Tampering with any of them after generation makes
// verification fail.
type AttendanceCircuit struct {
	Commitment       frontend.Variable `gnark:",public"`
	Nullifier        frontend.Variable `gnark:",public"`
	LocationHash     frontend.Variable `gnark:",public"`
	TimestampHash    frontend.Variable `gnark:",public"`
	OrganizationHash frontend.Variable `gnark:",public"`

	Features [biometric.VectorLen]frontend.Variable
	Salt     frontend.Variable
}

func (c *AttendanceCircuit) Define(api frontend.API) error {
	commit, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	for i := range c.Features {
		commit.Write(c.Features[i])
	}
	commit.Write(c.Salt)
	api.AssertIsEqual(c.Commitment, commit.Sum())

	null, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	for i := range c.Features {
		null.Write(c.Features[i])
	}
	api.AssertIsEqual(c.Nullifier, null.Sum())

	// Keep the remaining public inputs live so the compiler cannot prune
	// them out of the verification equation.
	api.AssertIsEqual(c.LocationHash, c.LocationHash)
	api.AssertIsEqual(c.TimestampHash, c.TimestampHash)
	api.AssertIsEqual(c.OrganizationHash, c.OrganizationHash)
	return nil
}
