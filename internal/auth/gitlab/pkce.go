package gitlab

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	codeChallengeMethod = "S256"
	// verifierEntropy encodes to a 128 character verifier, the longest RFC 7636 allows.
	verifierEntropy = 96
)

// PKCECodes is the proof key pair of one authorization request. The verifier stays in the
// pending request; only the challenge travels to the authorization endpoint.
type PKCECodes struct {
	CodeVerifier  string `json:"code_verifier"`
	CodeChallenge string `json:"code_challenge"`
}

// GeneratePKCECodes draws a fresh verifier and derives its S256 challenge.
func GeneratePKCECodes() (*PKCECodes, error) {
	entropy := make([]byte, verifierEntropy)
	if _, err := rand.Read(entropy); err != nil {
		return nil, fmt.Errorf("pkce: read random verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(entropy)
	return &PKCECodes{
		CodeVerifier:  verifier,
		CodeChallenge: oauth2.S256ChallengeFromVerifier(verifier),
	}, nil
}
