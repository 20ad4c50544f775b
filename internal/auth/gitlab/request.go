package gitlab

import (
	"encoding/json"
	"fmt"
	"time"
)

// Fixed authorization request parameters.
const (
	// Scope is the only scope the console requests.
	Scope = "read_user"
	// ResponseTypeCode selects the authorization code grant.
	ResponseTypeCode = "code"
)

// AuthorizationRequest is one login attempt. It is persisted while the browser visits the
// provider and consumed by the first token exchange that presents its state.
type AuthorizationRequest struct {
	ClientID     string            `json:"client_id"`
	RedirectURI  string            `json:"redirect_uri"`
	Scope        string            `json:"scope"`
	ResponseType string            `json:"response_type"`
	State        string            `json:"state"`
	Extras       map[string]string `json:"extras,omitempty"`
	// Internal holds the PKCE pair; it never leaves the client except as the challenge.
	Internal  PKCECodes `json:"internal"`
	CreatedAt time.Time `json:"created_at"`
}

// newAuthorizationRequest builds a request with a fresh state and PKCE pair.
func newAuthorizationRequest(clientID, redirectURI, redirectTo string, now time.Time) (*AuthorizationRequest, error) {
	state, err := NewAuthState(redirectTo)
	if err != nil {
		return nil, err
	}
	encoded, err := state.Encode()
	if err != nil {
		return nil, err
	}
	pkce, err := GeneratePKCECodes()
	if err != nil {
		return nil, err
	}
	return &AuthorizationRequest{
		ClientID:     clientID,
		RedirectURI:  redirectURI,
		Scope:        Scope,
		ResponseType: ResponseTypeCode,
		State:        encoded,
		Extras: map[string]string{
			"prompt":      "consent",
			"access_type": "offline",
		},
		Internal:  *pkce,
		CreatedAt: now.UTC(),
	}, nil
}

// RedirectTo returns the post-login path remembered in the state, if any.
func (r *AuthorizationRequest) RedirectTo() string {
	if r == nil || r.State == "" {
		return ""
	}
	state, err := DecodeAuthState(r.State)
	if err != nil {
		return ""
	}
	return state.RedirectTo
}

func marshalAuthorizationRequest(r *AuthorizationRequest) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal authorization request: %w", err)
	}
	return raw, nil
}

func unmarshalAuthorizationRequest(raw []byte) (*AuthorizationRequest, error) {
	var r AuthorizationRequest
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("unmarshal authorization request: %w", err)
	}
	return &r, nil
}
