package gitlab

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// TokenState is the persisted token record of the signed-in user.
type TokenState struct {
	// AccessToken authorizes API calls.
	AccessToken string `json:"access_token"`
	// RefreshToken obtains new access tokens without re-authentication.
	RefreshToken string `json:"refresh_token,omitempty"`
	// IssuedAt is the unix time in seconds when the access token was issued.
	IssuedAt int64 `json:"issued_at,omitempty"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in,omitempty"`
	// TokenType is usually "Bearer".
	TokenType string `json:"token_type,omitempty"`
	// Scope lists the granted scopes separated by spaces.
	Scope string `json:"scope,omitempty"`
}

// CanRefresh reports whether the state carries everything needed to compute an expiry
// and refresh once it is reached.
func (ts *TokenState) CanRefresh() bool {
	return ts != nil && ts.RefreshToken != "" && ts.IssuedAt > 0 && ts.ExpiresIn > 0
}

// Expiry returns issued_at + expires_in. The zero time is returned when the state cannot refresh.
func (ts *TokenState) Expiry() time.Time {
	if !ts.CanRefresh() {
		return time.Time{}
	}
	return time.Unix(ts.IssuedAt+ts.ExpiresIn, 0)
}

// Expired reports whether now has reached the computed expiry.
func (ts *TokenState) Expired(now time.Time) bool {
	if !ts.CanRefresh() {
		return false
	}
	return !now.Before(ts.Expiry())
}

// Merge copies the fields of a fresh token response over the state.
// The refresh token is only replaced when the response carries one, so a refresh token
// obtained by an earlier exchange survives responses that omit it.
func (ts *TokenState) Merge(fresh *TokenState) {
	if fresh == nil {
		return
	}
	ts.AccessToken = fresh.AccessToken
	ts.IssuedAt = fresh.IssuedAt
	ts.ExpiresIn = fresh.ExpiresIn
	ts.TokenType = fresh.TokenType
	ts.Scope = fresh.Scope
	if fresh.RefreshToken != "" {
		ts.RefreshToken = fresh.RefreshToken
	}
}

// Marshal serializes the state for storage.
func (ts *TokenState) Marshal() ([]byte, error) {
	raw, err := json.Marshal(ts)
	if err != nil {
		return nil, fmt.Errorf("marshal token state: %w", err)
	}
	return raw, nil
}

// UnmarshalTokenState parses a stored token record.
func UnmarshalTokenState(raw []byte) (*TokenState, error) {
	var ts TokenState
	if err := json.Unmarshal(raw, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

// tokenStateFromOAuth2 converts a token endpoint response into a TokenState issued at now.
func tokenStateFromOAuth2(token *oauth2.Token, now time.Time) *TokenState {
	ts := &TokenState{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IssuedAt:     now.Unix(),
		TokenType:    token.TokenType,
		ExpiresIn:    token.ExpiresIn,
	}
	if ts.ExpiresIn == 0 {
		ts.ExpiresIn = extraSeconds(token.Extra("expires_in"))
	}
	if ts.ExpiresIn == 0 && !token.Expiry.IsZero() {
		if remaining := time.Until(token.Expiry); remaining > 0 {
			ts.ExpiresIn = int64(remaining.Round(time.Second) / time.Second)
		}
	}
	if scope, ok := token.Extra("scope").(string); ok {
		ts.Scope = scope
	}
	return ts
}

func extraSeconds(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}
