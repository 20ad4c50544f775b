package util

import (
	"net/url"
	"strings"
)

// MaskToken obscures a credential for logging, keeping only the first and last few characters.
func MaskToken(token string) string {
	switch {
	case len(token) > 8:
		return token[:4] + "..." + token[len(token)-4:]
	case len(token) > 4:
		return token[:2] + "..." + token[len(token)-2:]
	case len(token) > 2:
		return token[:1] + "..." + token[len(token)-1:]
	default:
		return token
	}
}

// MaskAuthorizationHeader masks the credential of an Authorization header, keeping the scheme.
func MaskAuthorizationHeader(value string) string {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) < 2 {
		return MaskToken(value)
	}
	return parts[0] + " " + MaskToken(parts[1])
}

// MaskSensitiveQuery masks OAuth parameters (code, state, tokens, secrets) in a raw query string.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		keyPart, valuePart, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		key, err := url.QueryUnescape(keyPart)
		if err != nil {
			key = keyPart
		}
		if !shouldMaskQueryParam(key) {
			continue
		}
		value, err := url.QueryUnescape(valuePart)
		if err != nil {
			value = valuePart
		}
		parts[i] = keyPart + "=" + url.QueryEscape(MaskToken(strings.TrimSpace(value)))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}

func shouldMaskQueryParam(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	switch key {
	case "":
		return false
	case "code", "state", "code_verifier", "key":
		return true
	}
	return strings.Contains(key, "token") || strings.Contains(key, "secret")
}
