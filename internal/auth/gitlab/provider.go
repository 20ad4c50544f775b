// Package gitlab implements the OAuth2 authorization code flow (with PKCE) against a single
// GitLab-style identity provider. It builds authorization requests, completes the redirect
// response, exchanges codes and refresh tokens at the token endpoint and keeps the resulting
// token state in a pluggable key-value storage.
package gitlab

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint path suffixes appended to the authority.
const (
	authorizePath = "/oauth/authorize"
	tokenPath     = "/oauth/token"
	revokePath    = "/oauth/revoke"
	userinfoPath  = "/oauth/userinfo"
)

// ProviderConfiguration holds the OAuth endpoints of the identity provider.
// All endpoints share the same authority and differ only by path suffix.
type ProviderConfiguration struct {
	// Authority is the normalized base URL of the provider.
	Authority string
	// AuthorizationEndpoint receives the browser redirect for the authorization request.
	AuthorizationEndpoint string
	// TokenEndpoint exchanges codes and refresh tokens for access tokens.
	TokenEndpoint string
	// RevocationEndpoint revokes access or refresh tokens.
	RevocationEndpoint string
	// UserinfoEndpoint returns claims about the signed-in user.
	UserinfoEndpoint string
}

// NewProviderConfiguration derives the endpoint set from a base authority URL.
// It fails for authorities that are not absolute http(s) URLs or that carry a query or fragment.
func NewProviderConfiguration(authority string) (*ProviderConfiguration, error) {
	trimmed := strings.TrimSpace(authority)
	if trimmed == "" {
		return nil, fmt.Errorf("authority is empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse authority: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("authority %q must use http or https", trimmed)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("authority %q has no host", trimmed)
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" || parsed.User != nil {
		return nil, fmt.Errorf("authority %q must not carry userinfo, query or fragment", trimmed)
	}

	base := parsed.Scheme + "://" + parsed.Host + strings.TrimRight(parsed.EscapedPath(), "/")
	return &ProviderConfiguration{
		Authority:             base,
		AuthorizationEndpoint: base + authorizePath,
		TokenEndpoint:         base + tokenPath,
		RevocationEndpoint:    base + revokePath,
		UserinfoEndpoint:      base + userinfoPath,
	}, nil
}
