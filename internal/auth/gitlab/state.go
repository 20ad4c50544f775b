package gitlab

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// nonceBytes is the amount of randomness carried in every state nonce.
const nonceBytes = 10

// AuthState is the opaque value sent as the OAuth state parameter.
// It binds the redirect to the pending request and remembers where to go after login.
type AuthState struct {
	Nonce      string `json:"nonce"`
	RedirectTo string `json:"redirectTo,omitempty"`
}

// NewAuthState creates a state with a fresh random nonce.
func NewAuthState(redirectTo string) (*AuthState, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate state nonce: %w", err)
	}
	return &AuthState{
		Nonce:      hex.EncodeToString(buf),
		RedirectTo: strings.TrimSpace(redirectTo),
	}, nil
}

// Encode serializes the state into the string sent to the provider.
func (s *AuthState) Encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	return string(raw), nil
}

// DecodeAuthState parses a serialized state value.
func DecodeAuthState(raw string) (*AuthState, error) {
	var state AuthState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

// isRelativePath reports whether target is a same-origin path.
// Protocol-relative values such as "//evil.test" are rejected.
func isRelativePath(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.HasPrefix(target, "/\\")
}
