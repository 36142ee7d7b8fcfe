package commitment

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presentia/internal/biometric"
	"presentia/internal/field"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine([]byte("test-salt-encryption-secret"))
	require.NoError(t, err)
	return engine
}

func extractFeatures(t *testing.T, sample string) biometric.FeatureVector {
	t.Helper()
	vec, err := biometric.NewMockExtractor().Extract(context.Background(), []byte(sample))
	require.NoError(t, err)
	return vec
}

func TestNewEngine(t *testing.T) {
	_, err := NewEngine(nil)
	assert.Error(t, err)
}

func TestCommitAndNullifier(t *testing.T) {
	engine := newTestEngine(t)
	features := extractFeatures(t, "face-sample")

	t.Run("different salts give different commitments", func(t *testing.T) {
		s1, err := engine.DeriveSalt()
		require.NoError(t, err)
		s2, err := engine.DeriveSalt()
		require.NoError(t, err)
		require.NotEqual(t, s1, s2)

		c1, err := engine.Commit(features, s1)
		require.NoError(t, err)
		c2, err := engine.Commit(features, s2)
		require.NoError(t, err)
		assert.NotEqual(t, c1, c2)
	})

	t.Run("nullifier ignores the salt", func(t *testing.T) {
		n1, err := engine.NullifierOf(features)
		require.NoError(t, err)
		n2, err := engine.NullifierOf(features)
		require.NoError(t, err)
		assert.Equal(t, n1, n2)
	})

	t.Run("commitment is a field element", func(t *testing.T) {
		salt, err := engine.DeriveSalt()
		require.NoError(t, err)
		c, err := engine.Commit(features, salt)
		require.NoError(t, err)
		assert.True(t, c.Cmp(field.Modulus()) < 0)
	})

	t.Run("empty feature vector is malformed", func(t *testing.T) {
		_, err := engine.Commit(nil, big.NewInt(1))
		var malformed *field.MalformedInputError
		assert.ErrorAs(t, err, &malformed)

		_, err = engine.NullifierOf(nil)
		assert.ErrorAs(t, err, &malformed)
	})
}

// TestNullifierCollisionResistance exercises the statistical property that
// distinct biometrics yield distinct nullifiers. Not a proof, just a smoke
// check over a few hundred samples.
func TestNullifierCollisionResistance(t *testing.T) {
	engine := newTestEngine(t)
	seen := make(map[string]int)
	for i := 0; i < 200; i++ {
		features := extractFeatures(t, fmt.Sprintf("subject-%d", i))
		n, err := engine.NullifierOf(features)
		require.NoError(t, err)
		if prev, ok := seen[n.String()]; ok {
			t.Fatalf("nullifier collision between subject %d and %d", prev, i)
		}
		seen[n.String()] = i
	}
}

func TestSaltEncryption(t *testing.T) {
	engine := newTestEngine(t)
	ownerCtx := "owner-7c9e6679-7425-40de-944b-e07fc1f90ae7"

	t.Run("round-trips for the correct context", func(t *testing.T) {
		salt, err := engine.DeriveSalt()
		require.NoError(t, err)

		blob, err := engine.EncryptSalt(salt, ownerCtx)
		require.NoError(t, err)

		got, err := engine.DecryptSalt(blob, ownerCtx)
		require.NoError(t, err)
		assert.Equal(t, salt, got)
	})

	t.Run("fails for a different context", func(t *testing.T) {
		salt, err := engine.DeriveSalt()
		require.NoError(t, err)

		blob, err := engine.EncryptSalt(salt, ownerCtx)
		require.NoError(t, err)

		_, err = engine.DecryptSalt(blob, "owner-someone-else")
		var decErr *SaltDecryptionError
		assert.ErrorAs(t, err, &decErr)
	})

	t.Run("fails for tampered ciphertext", func(t *testing.T) {
		salt, err := engine.DeriveSalt()
		require.NoError(t, err)

		blob, err := engine.EncryptSalt(salt, ownerCtx)
		require.NoError(t, err)
		blob[len(blob)-1] ^= 0x01

		_, err = engine.DecryptSalt(blob, ownerCtx)
		var decErr *SaltDecryptionError
		assert.ErrorAs(t, err, &decErr)
	})

	t.Run("fails for truncated blob", func(t *testing.T) {
		_, err := engine.DecryptSalt([]byte{0x01, 0x02}, ownerCtx)
		var decErr *SaltDecryptionError
		assert.ErrorAs(t, err, &decErr)
	})

	t.Run("ciphertexts are non-deterministic", func(t *testing.T) {
		salt, err := engine.DeriveSalt()
		require.NoError(t, err)

		a, err := engine.EncryptSalt(salt, ownerCtx)
		require.NoError(t, err)
		b, err := engine.EncryptSalt(salt, ownerCtx)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}
