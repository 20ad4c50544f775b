package gitlab

import (
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenStateExpiry(t *testing.T) {
	t.Parallel()

	issued := time.Unix(1_000, 0)
	tests := []struct {
		name    string
		state   *TokenState
		now     time.Time
		expired bool
	}{
		{"before expiry", &TokenState{AccessToken: "a", RefreshToken: "r", IssuedAt: issued.Unix(), ExpiresIn: 60}, issued.Add(59 * time.Second), false},
		{"at expiry", &TokenState{AccessToken: "a", RefreshToken: "r", IssuedAt: issued.Unix(), ExpiresIn: 60}, issued.Add(60 * time.Second), true},
		{"after expiry", &TokenState{AccessToken: "a", RefreshToken: "r", IssuedAt: issued.Unix(), ExpiresIn: 60}, issued.Add(time.Hour), true},
		{"no refresh token", &TokenState{AccessToken: "a", IssuedAt: issued.Unix(), ExpiresIn: 60}, issued.Add(time.Hour), false},
		{"no issued_at", &TokenState{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}, issued.Add(time.Hour), false},
		{"no expires_in", &TokenState{AccessToken: "a", RefreshToken: "r", IssuedAt: issued.Unix()}, issued.Add(time.Hour), false},
		{"nil", nil, issued, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.state.Expired(tt.now); got != tt.expired {
				t.Errorf("Expired() = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestTokenStateMerge(t *testing.T) {
	t.Parallel()

	state := &TokenState{AccessToken: "old", RefreshToken: "keep", IssuedAt: 1, ExpiresIn: 10}
	state.Merge(&TokenState{AccessToken: "new", IssuedAt: 2, ExpiresIn: 20, TokenType: "Bearer"})
	if state.AccessToken != "new" || state.RefreshToken != "keep" || state.IssuedAt != 2 || state.ExpiresIn != 20 {
		t.Fatalf("merge without refresh token = %+v", state)
	}

	state.Merge(&TokenState{AccessToken: "newer", RefreshToken: "rotated"})
	if state.RefreshToken != "rotated" {
		t.Fatalf("refresh token = %q, want rotated", state.RefreshToken)
	}
}

func TestTokenStateRoundTrip(t *testing.T) {
	t.Parallel()

	state := &TokenState{
		AccessToken:  "access",
		RefreshToken: "refresh",
		IssuedAt:     1_700_000_000,
		ExpiresIn:    7200,
		TokenType:    "Bearer",
		Scope:        "read_user",
	}
	raw, err := state.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	decoded, err := UnmarshalTokenState(raw)
	if err != nil {
		t.Fatalf("UnmarshalTokenState() error = %v", err)
	}
	if *decoded != *state {
		t.Fatalf("round trip = %+v, want %+v", decoded, state)
	}

	if _, err = UnmarshalTokenState([]byte("{broken")); err == nil {
		t.Error("UnmarshalTokenState() expected error for invalid JSON")
	}
}

func TestTokenStateFromOAuth2(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	token := (&oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
	}).WithExtra(map[string]any{"scope": "read_user"})

	state := tokenStateFromOAuth2(token, now)
	if state.IssuedAt != now.Unix() || state.ExpiresIn != 3600 || state.Scope != "read_user" {
		t.Fatalf("tokenStateFromOAuth2() = %+v", state)
	}

	fromExtra := tokenStateFromOAuth2((&oauth2.Token{AccessToken: "a"}).WithExtra(map[string]any{"expires_in": float64(120)}), now)
	if fromExtra.ExpiresIn != 120 {
		t.Errorf("expires_in from raw response = %d, want 120", fromExtra.ExpiresIn)
	}
}
