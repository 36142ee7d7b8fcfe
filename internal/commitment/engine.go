// Package commitment derives biometric commitments and nullifiers and owns
// the encryption of enrollment salts.
//
// Commitment = MiMC(features ‖ salt): unique per (features, salt) pair and
// not reproducible without the salt.
// Nullifier = MiMC(features): deterministic for a physical biometric
// regardless of salt, which is what makes cross-organization duplicate
// detection possible.
package commitment

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/argon2"

	"presentia/internal/biometric"
	"presentia/internal/field"
)

// SaltDecryptionError reports an authentication failure while decrypting an
// enrollment salt: wrong context, wrong secret, or a tampered ciphertext.
// It is a configuration/integrity fault and never degrades into returning
// garbage plaintext.
type SaltDecryptionError struct {
	cause error
}

func (e *SaltDecryptionError) Error() string {
	return fmt.Sprintf("salt decryption failed: %v", e.cause)
}

func (e *SaltDecryptionError) Unwrap() error { return e.cause }

// Engine derives commitments and nullifiers and encrypts salts at rest.
// It is stateless apart from the encryption secret and safe for concurrent
// use.
type Engine struct {
	secret []byte
}

// NewEngine builds an Engine keyed by the salt-encryption secret from
// configuration. The secret must be non-empty.
func NewEngine(secret []byte) (*Engine, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("salt encryption secret is required")
	}
	return &Engine{secret: secret}, nil
}

// DeriveSalt generates a fresh random field element. Salt entropy matches the
// full field, which exceeds the entropy of any feature vector component.
// An RNG failure is fatal to the enrollment; there is no fallback source.
func (e *Engine) DeriveSalt() (*big.Int, error) {
	return field.Rand()
}

// Commit computes MiMC(features ‖ salt). Pure function, no side effects.
func (e *Engine) Commit(features biometric.FeatureVector, salt *big.Int) (*big.Int, error) {
	if len(features) == 0 {
		return nil, &field.MalformedInputError{Reason: "empty feature vector"}
	}
	inputs := make([]*big.Int, 0, len(features)+1)
	inputs = append(inputs, features...)
	inputs = append(inputs, salt)
	return field.Hash(inputs...)
}

// NullifierOf computes MiMC(features). It must not depend on the salt: two
// enrollments of the same physical biometric with different salts yield the
// same nullifier and different commitments.
func (e *Engine) NullifierOf(features biometric.FeatureVector) (*big.Int, error) {
	if len(features) == 0 {
		return nil, &field.MalformedInputError{Reason: "empty feature vector"}
	}
	return field.Hash(features...)
}

// EncryptSalt seals a salt under a key derived from the engine secret and an
// enrollment-specific context (the owning identity). Binding the key to the
// context means a ciphertext lifted from one enrollment record cannot be
// decrypted against another.
//
// The returned blob is nonce ‖ ciphertext.
func (e *Engine) EncryptSalt(salt *big.Int, context string) ([]byte, error) {
	reduced, err := field.Reduce(salt)
	if err != nil {
		return nil, err
	}
	aead, err := e.aead(context)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("platform RNG unavailable: %w", err)
	}
	sealed := aead.Seal(nil, nonce, reduced.Bytes(), []byte(context))
	return append(nonce, sealed...), nil
}

// DecryptSalt opens a blob produced by EncryptSalt for the same context.
// The plaintext salt must live only for the duration of one proof-generation
// call; callers must not cache it.
func (e *Engine) DecryptSalt(blob []byte, context string) (*big.Int, error) {
	aead, err := e.aead(context)
	if err != nil {
		return nil, err
	}
	if len(blob) < aead.NonceSize() {
		return nil, &SaltDecryptionError{cause: fmt.Errorf("ciphertext shorter than nonce")}
	}
	nonce, sealed := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, []byte(context))
	if err != nil {
		return nil, &SaltDecryptionError{cause: err}
	}
	return new(big.Int).SetBytes(plain), nil
}

// aead derives the per-context AES-256-GCM cipher. Argon2id parameters follow
// the values used for key derivation elsewhere in the stack.
func (e *Engine) aead(context string) (cipher.AEAD, error) {
	key := argon2.IDKey(e.secret, []byte(context), 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
