// Command zksetup compiles the attendance circuit and runs the Groth16
// trusted setup, writing the constraint system and key pair to disk. Run it
// once per circuit shape before starting the server in real proving mode.
package main

import (
	"flag"
	"os"

	"presentia/internal/platform/logger"
	"presentia/internal/proof"
)

func main() {
	dir := flag.String("out", "artifacts", "directory to write circuit artifacts into")
	flag.Parse()

	log := logger.New()
	log.Info("compiling attendance circuit and running trusted setup", "out", *dir)

	if err := proof.Setup(*dir); err != nil {
		log.Error("setup failed", "error", err)
		os.Exit(1)
	}
	log.Info("circuit artifacts written",
		"constraint_system", proof.ConstraintFile,
		"proving_key", proof.ProvingKeyFile,
		"verifying_key", proof.VerifyingKeyFile,
	)
}
