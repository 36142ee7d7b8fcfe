package proof

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Setup compiles the attendance circuit and runs the Groth16 trusted setup,
// writing the constraint system, proving key and verification key into dir.
// This is a one-time ceremony per circuit shape; re-running it invalidates
// every previously issued proof.
func Setup(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &AttendanceCircuit{})
	if err != nil {
		return fmt.Errorf("compile circuit: %w", err)
	}

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return fmt.Errorf("groth16 setup: %w", err)
	}

	if err := writeArtifact(filepath.Join(dir, ConstraintFile), cs); err != nil {
		return err
	}
	if err := writeArtifact(filepath.Join(dir, ProvingKeyFile), pk); err != nil {
		return err
	}
	return writeArtifact(filepath.Join(dir, VerifyingKeyFile), vk)
}

func writeArtifact(path string, from io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := from.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
