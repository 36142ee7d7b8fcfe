// Package field provides finite-field arithmetic helpers shared by the
// commitment engine and both proving strategies.
//
// The field is the BN254 scalar field, the same field the Groth16 attendance
// circuit is compiled over, so native hashing and in-circuit hashing agree
// byte for byte.
package field

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// MalformedInputError reports an input that cannot be canonicalized into the
// field: nil, negative, or unparseable. This is always a caller bug and is
// surfaced as-is.
type MalformedInputError struct {
	Reason string
}

func (e *MalformedInputError) Error() string {
	return "malformed field input: " + e.Reason
}

// Modulus returns the field prime P. The returned value is a copy; callers
// may mutate it freely.
func Modulus() *big.Int {
	return new(big.Int).Set(fr.Modulus())
}

// Reduce canonicalizes x into [0, P). Negative and nil inputs are rejected
// rather than wrapped, so a caller bug cannot silently alias two commitments.
func Reduce(x *big.Int) (*big.Int, error) {
	if x == nil {
		return nil, &MalformedInputError{Reason: "nil value"}
	}
	if x.Sign() < 0 {
		return nil, &MalformedInputError{Reason: "negative value " + x.String()}
	}
	return new(big.Int).Mod(x, fr.Modulus()), nil
}

// Parse reads a non-negative decimal integer and reduces it into the field.
func Parse(s string) (*big.Int, error) {
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, &MalformedInputError{Reason: fmt.Sprintf("not a decimal integer: %q", s)}
	}
	return Reduce(x)
}

// Hash computes the MiMC hash of the given field elements. Inputs are
// canonicalized before hashing and absorbed in argument order; the same
// ordered sequence always hashes identically, and no reordering or
// deduplication is applied.
//
// The encoding matches the gnark MiMC gadget: each element is marshaled to
// its 32-byte canonical big-endian form before being absorbed.
func Hash(inputs ...*big.Int) (*big.Int, error) {
	h := mimc.NewMiMC()
	for _, x := range inputs {
		reduced, err := Reduce(x)
		if err != nil {
			return nil, err
		}
		var fe fr.Element
		fe.SetBigInt(reduced)
		b := fe.Bytes()
		h.Write(b[:])
	}
	sum := new(big.Int).SetBytes(h.Sum(nil))
	return sum.Mod(sum, fr.Modulus()), nil
}

// HashBytes hashes arbitrary byte strings into the field. Each chunk is
// interpreted as a big-endian unsigned integer and reduced before absorption,
// so the helper accepts raw device identifiers, MAC addresses, and sample
// digests without the caller pre-canonicalizing.
func HashBytes(chunks ...[]byte) (*big.Int, error) {
	inputs := make([]*big.Int, len(chunks))
	for i, c := range chunks {
		inputs[i] = new(big.Int).SetBytes(c)
	}
	return Hash(inputs...)
}

// Rand draws a uniformly random field element from crypto/rand. An RNG
// failure is returned to the caller, which treats it as fatal: salts must
// never be generated from a degraded entropy source.
func Rand() (*big.Int, error) {
	x, err := rand.Int(rand.Reader, fr.Modulus())
	if err != nil {
		return nil, fmt.Errorf("platform RNG unavailable: %w", err)
	}
	return x, nil
}
