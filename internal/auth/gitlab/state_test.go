package gitlab

import (
	"strings"
	"testing"
)

func TestAuthStateEncoding(t *testing.T) {
	t.Parallel()

	state := &AuthState{Nonce: "abc", RedirectTo: "/dashboard"}
	encoded, err := state.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if encoded != `{"nonce":"abc","redirectTo":"/dashboard"}` {
		t.Errorf("Encode() = %s", encoded)
	}

	decoded, err := DecodeAuthState(encoded)
	if err != nil {
		t.Fatalf("DecodeAuthState() error = %v", err)
	}
	if *decoded != *state {
		t.Errorf("DecodeAuthState() = %+v, want %+v", decoded, state)
	}

	bare, _ := (&AuthState{Nonce: "abc"}).Encode()
	if strings.Contains(bare, "redirectTo") {
		t.Errorf("empty redirectTo should be omitted, got %s", bare)
	}

	if _, err = DecodeAuthState("not-json"); err == nil {
		t.Error("DecodeAuthState() expected error for malformed input")
	}
}

func TestNewAuthStateNonceIsRandom(t *testing.T) {
	t.Parallel()

	a, err := NewAuthState("")
	if err != nil {
		t.Fatalf("NewAuthState() error = %v", err)
	}
	b, err := NewAuthState("")
	if err != nil {
		t.Fatalf("NewAuthState() error = %v", err)
	}
	if a.Nonce == b.Nonce {
		t.Error("nonces should differ")
	}
}

func TestIsRelativePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target string
		want   bool
	}{
		{"/dashboard", true},
		{"/", true},
		{"/a/b?c=d", true},
		{"", false},
		{"dashboard", false},
		{"https://evil.test", false},
		{"//evil.test", false},
		{"/\\evil.test", false},
	}

	for _, tt := range tests {
		if got := isRelativePath(tt.target); got != tt.want {
			t.Errorf("isRelativePath(%q) = %v, want %v", tt.target, got, tt.want)
		}
	}
}
