package location

import (
	"math/big"
	"time"

	"presentia/internal/field"
)

// Artifact is a hash commitment to the outcome of a location verification:
// {timestamp, validity, method, confidence bucketed to the nearest 10} plus
// a challenge/response pair.
//
// This is NOT a zero-knowledge proof of location. The response is derivable
// by anyone holding the public inputs; the artifact only lets a relying
// party check that a stored verification outcome was not altered after the
// fact. Treat it as a tamper-evidence commitment, nothing more.
type Artifact struct {
	Commitment string `json:"commitment"`
	Challenge  string `json:"challenge"`
	Response   string `json:"response"`

	Timestamp        time.Time `json:"timestamp"`
	Method           Method    `json:"method"`
	ConfidenceBucket int       `json:"confidence_bucket"`
}

func NewArtifact(ts time.Time, valid bool, method Method, confidence int) (*Artifact, error) {
	bucket := (confidence / 10) * 10

	validity := int64(0)
	if valid {
		validity = 1
	}
	commit, err := field.Hash(
		big.NewInt(ts.Unix()),
		big.NewInt(validity),
		methodTag(method),
		big.NewInt(int64(bucket)),
	)
	if err != nil {
		return nil, err
	}

	challenge, err := field.Rand()
	if err != nil {
		return nil, err
	}
	response, err := field.Hash(commit, challenge)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Commitment:       commit.String(),
		Challenge:        challenge.String(),
		Response:         response.String(),
		Timestamp:        ts,
		Method:           method,
		ConfidenceBucket: bucket,
	}, nil
}

// CheckArtifact recomputes the commitment and response from the artifact's
// own public fields. A false return means the artifact was altered after
// issuance; a true return means only that, not that the location was real.
func CheckArtifact(a *Artifact, valid bool) (bool, error) {
	validity := int64(0)
	if valid {
		validity = 1
	}
	commit, err := field.Hash(
		big.NewInt(a.Timestamp.Unix()),
		big.NewInt(validity),
		methodTag(a.Method),
		big.NewInt(int64(a.ConfidenceBucket)),
	)
	if err != nil {
		return false, err
	}
	if commit.String() != a.Commitment {
		return false, nil
	}
	challenge, err := field.Parse(a.Challenge)
	if err != nil {
		return false, nil
	}
	response, err := field.Hash(commit, challenge)
	if err != nil {
		return false, err
	}
	return response.String() == a.Response, nil
}

func methodTag(m Method) *big.Int {
	switch m {
	case MethodGPS:
		return big.NewInt(1)
	case MethodWiFi:
		return big.NewInt(2)
	case MethodIP:
		return big.NewInt(3)
	default:
		return big.NewInt(0)
	}
}
