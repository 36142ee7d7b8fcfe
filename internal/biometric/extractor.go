// Package biometric defines the feature-extraction seam between raw biometric
// samples and the commitment/proof pipeline.
package biometric

import (
	"context"
	"math/big"

	"presentia/internal/field"
)

// VectorLen is the fixed feature-vector length for all supported modalities.
// The attendance circuit is compiled for this length, so it cannot change
// without a new trusted setup.
const VectorLen = 128

// FeatureVector is an ordered sequence of field elements produced by an
// extractor. It exists only for the duration of a commitment or proof
// operation and is never persisted.
type FeatureVector []*big.Int

// FeatureExtractor turns a raw biometric sample into a feature vector.
//
// Real extractors are noisy: the same physical biometric does not yield a
// bit-identical vector across devices and sessions. Nullifier-based
// cross-organization uniqueness assumes stability, so a production extractor
// must include a fuzzy-matching or error-correction stage before this
// interface, mapping noisy captures of one biometric onto one canonical
// vector. That stage is outside this module; implementations of this
// interface are expected to be deterministic.
type FeatureExtractor interface {
	Extract(ctx context.Context, sample []byte) (FeatureVector, error)
}

// MockExtractor derives a deterministic feature vector from the sample bytes
// via a MiMC chain. It stands in for a trained recognition model in tests and
// in simulation deployments: identical samples map to identical vectors, and
// distinct samples diverge with overwhelming probability.
type MockExtractor struct{}

func NewMockExtractor() *MockExtractor { return &MockExtractor{} }

func (e *MockExtractor) Extract(_ context.Context, sample []byte) (FeatureVector, error) {
	seed, err := field.HashBytes(sample)
	if err != nil {
		return nil, err
	}
	vec := make(FeatureVector, VectorLen)
	cur := seed
	for i := range vec {
		cur, err = field.Hash(cur, big.NewInt(int64(i)))
		if err != nil {
			return nil, err
		}
		vec[i] = cur
	}
	return vec, nil
}
