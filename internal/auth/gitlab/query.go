package gitlab

import (
	"fmt"
	"net/url"
	"strings"
)

// AuthorizationResponse captures the parameters the provider appends to the redirect URI.
type AuthorizationResponse struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseQueryString extracts the query parameters of a location.
// When useFragment is true and the URL carries a fragment (hash routing), the parameters
// are read from the fragment instead; the console never routes through the fragment, so
// the client always parses with useFragment=false.
func ParseQueryString(rawURL string, useFragment bool) (url.Values, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return url.Values{}, nil
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		switch {
		case strings.HasPrefix(candidate, "?"):
			candidate = "http://localhost/" + candidate
		case strings.HasPrefix(candidate, "/"):
			candidate = "http://localhost" + candidate
		case strings.Contains(candidate, "="):
			candidate = "http://localhost/?" + candidate
		default:
			return nil, fmt.Errorf("invalid location %q", trimmed)
		}
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}

	if useFragment && parsed.Fragment != "" {
		fragment := parsed.Fragment
		if idx := strings.Index(fragment, "?"); idx >= 0 {
			fragment = fragment[idx+1:]
		}
		values, errFrag := url.ParseQuery(fragment)
		if errFrag != nil {
			return nil, fmt.Errorf("parse fragment: %w", errFrag)
		}
		return values, nil
	}

	values, err := url.ParseQuery(parsed.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	return values, nil
}

// ParseAuthorizationResponse reads the authorization response from a redirect location.
// It returns nil when the location carries neither a code nor an error.
func ParseAuthorizationResponse(rawURL string) (*AuthorizationResponse, error) {
	values, err := ParseQueryString(rawURL, false)
	if err != nil {
		return nil, err
	}

	resp := &AuthorizationResponse{
		Code:             strings.TrimSpace(values.Get("code")),
		State:            values.Get("state"),
		Error:            strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}
	if resp.Error == "" && resp.ErrorDescription != "" {
		resp.Error = resp.ErrorDescription
		resp.ErrorDescription = ""
	}
	if resp.Code == "" && resp.Error == "" {
		return nil, nil
	}
	return resp, nil
}

// HasAuthorizationResponse performs the cheap presence test run on every page load:
// the query string must mention both a code and a state.
func HasAuthorizationResponse(rawURL string) bool {
	query, ok := rawQuery(rawURL)
	return ok && strings.Contains(query, "code=") && strings.Contains(query, "state=")
}

// HasProviderErrorResponse reports whether the query string carries an error redirect,
// an error and a state, so the pending attempt can be settled.
func HasProviderErrorResponse(rawURL string) bool {
	query, ok := rawQuery(rawURL)
	return ok && strings.Contains(query, "error=") && strings.Contains(query, "state=")
}

// rawQuery returns the text between '?' and '#' without decoding it.
func rawQuery(rawURL string) (string, bool) {
	_, query, ok := strings.Cut(rawURL, "?")
	if !ok {
		return "", false
	}
	query, _, _ = strings.Cut(query, "#")
	return query, true
}
