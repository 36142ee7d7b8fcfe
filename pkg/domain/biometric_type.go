package domain

import dErrors "presentia/pkg/domain-errors"

// BiometricType identifies the modality a feature vector was extracted from.
// Invariant: the value must be one of the supported modalities.
//
// Usage: construct via ParseBiometricType at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type BiometricType string

const (
	BiometricFace        BiometricType = "face"
	BiometricFingerprint BiometricType = "fingerprint"
	BiometricIris        BiometricType = "iris"
	BiometricVoice       BiometricType = "voice"
)

// validBiometricTypes is the single source of truth for supported modalities.
var validBiometricTypes = map[BiometricType]bool{
	BiometricFace:        true,
	BiometricFingerprint: true,
	BiometricIris:        true,
	BiometricVoice:       true,
}

func (t BiometricType) IsValid() bool {
	return validBiometricTypes[t]
}

func (t BiometricType) String() string { return string(t) }

// ParseBiometricType constructs a BiometricType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseBiometricType(s string) (BiometricType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "biometric type cannot be empty")
	}
	t := BiometricType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported biometric type: "+s)
	}
	return t, nil
}
