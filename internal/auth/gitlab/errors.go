package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// OAuthError represents an error reported by the provider on the authorization redirect.
type OAuthError struct {
	// Code is the OAuth error code.
	Code string `json:"error"`
	// Description is a human-readable description of the error.
	Description string `json:"error_description,omitempty"`
	// StatusCode is the HTTP status code associated with the error.
	StatusCode int `json:"-"`
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return "provider error: " + e.Code
	}
	return fmt.Sprintf("provider error %s: %s", e.Code, e.Description)
}

// NewOAuthError builds the error for an error= redirect.
func NewOAuthError(code, description string, statusCode int) *OAuthError {
	return &OAuthError{Code: code, Description: description, StatusCode: statusCode}
}

// AuthenticationError represents a failure of the client flow.
type AuthenticationError struct {
	// Type is the type of authentication error.
	Type string `json:"type"`
	// Message is a human-readable message describing the error.
	Message string `json:"message"`
	// Code is the HTTP status code associated with the error.
	Code int `json:"code"`
	// Cause is the underlying error that caused this authentication error.
	Cause error `json:"-"`
}

func (e *AuthenticationError) Error() string {
	if e.Cause == nil {
		return e.Type + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// Authentication error kinds.
var (
	// ErrConfigurationMissing is reported when the provider endpoints could not be derived.
	ErrConfigurationMissing = &AuthenticationError{
		Type:    "configuration_missing",
		Message: "Unknown service configuration",
		Code:    http.StatusInternalServerError,
	}

	// ErrStateMismatch is reported when the returned state does not belong to the pending request.
	ErrStateMismatch = &AuthenticationError{
		Type:    "state_mismatch",
		Message: "OAuth state parameter does not match the pending request",
		Code:    http.StatusBadRequest,
	}

	// ErrReplayedCode is reported when an authorization code is presented a second time.
	ErrReplayedCode = &AuthenticationError{
		Type:    "replayed_code",
		Message: "Authorization code has already been exchanged",
		Code:    http.StatusBadRequest,
	}

	// ErrTokenExchangeFailed is reported when the token endpoint rejects the exchange.
	ErrTokenExchangeFailed = &AuthenticationError{
		Type:    "token_exchange_failed",
		Message: "Failed to exchange credentials for tokens",
		Code:    http.StatusBadGateway,
	}

	// ErrUnauthorized is reported when the token endpoint answers 401.
	ErrUnauthorized = &AuthenticationError{
		Type:    "unauthorized",
		Message: "Token endpoint rejected the client or user",
		Code:    http.StatusUnauthorized,
	}

	// ErrNetworkFailure is reported when the token endpoint cannot be reached.
	ErrNetworkFailure = &AuthenticationError{
		Type:    "network_failure",
		Message: "Token endpoint is unreachable",
		Code:    http.StatusServiceUnavailable,
	}

	// ErrStorageCorruption is reported when the persisted token record cannot be parsed.
	ErrStorageCorruption = &AuthenticationError{
		Type:    "storage_corruption",
		Message: "Persisted token state is corrupted",
		Code:    http.StatusInternalServerError,
	}

	// ErrCallbackTimeout is reported when no authorization response arrives in time.
	ErrCallbackTimeout = &AuthenticationError{
		Type:    "callback_timeout",
		Message: "Timeout waiting for OAuth callback",
		Code:    http.StatusRequestTimeout,
	}
)

// NewAuthenticationError returns a copy of kind carrying cause.
func NewAuthenticationError(kind *AuthenticationError, cause error) *AuthenticationError {
	wrapped := *kind
	wrapped.Cause = cause
	return &wrapped
}

// IsAuthenticationError reports whether err wraps an *AuthenticationError.
func IsAuthenticationError(err error) bool {
	_, ok := errors.AsType[*AuthenticationError](err)
	return ok
}

// IsOAuthError reports whether err wraps an *OAuthError.
func IsOAuthError(err error) bool {
	_, ok := errors.AsType[*OAuthError](err)
	return ok
}

// IsErrorType reports whether err is an authentication error of the same kind as base.
func IsErrorType(err error, base *AuthenticationError) bool {
	authErr, ok := errors.AsType[*AuthenticationError](err)
	return ok && base != nil && authErr.Type == base.Type
}

func retrieveStatus(err error) int {
	retrieveErr, ok := errors.AsType[*oauth2.RetrieveError](err)
	if !ok || retrieveErr.Response == nil {
		return 0
	}
	return retrieveErr.Response.StatusCode
}

// IsUnauthorized reports whether the failure should send the user to the unknown-user page.
func IsUnauthorized(err error) bool {
	return IsErrorType(err, ErrUnauthorized) || retrieveStatus(err) == http.StatusUnauthorized
}

// classifyExchangeError maps a token endpoint failure onto the error taxonomy.
func classifyExchangeError(err error) *AuthenticationError {
	if _, ok := errors.AsType[*oauth2.RetrieveError](err); ok {
		if retrieveStatus(err) == http.StatusUnauthorized {
			return NewAuthenticationError(ErrUnauthorized, err)
		}
		return NewAuthenticationError(ErrTokenExchangeFailed, err)
	}
	if authErr, ok := errors.AsType[*AuthenticationError](err); ok {
		return authErr
	}
	if _, ok := errors.AsType[*url.Error](err); ok || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewAuthenticationError(ErrNetworkFailure, err)
	}
	// Decoding failures such as a response without access_token.
	return NewAuthenticationError(ErrTokenExchangeFailed, err)
}

var friendlyMessages = map[string]string{
	ErrConfigurationMissing.Type: "The GitLab connection is not configured. Check the authority URL.",
	ErrStateMismatch.Type:        "The sign-in response could not be verified. Please log in again.",
	ErrReplayedCode.Type:         "The sign-in response could not be verified. Please log in again.",
	ErrUnauthorized.Type:         "GitLab does not recognize this user or application.",
	ErrNetworkFailure.Type:       "GitLab could not be reached. Please try again later.",
	ErrCallbackTimeout.Type:      "Sign-in timed out. Please try again.",
	ErrStorageCorruption.Type:    "Your saved session was unreadable and has been cleared. Please log in again.",
}

// GetUserFriendlyMessage turns a flow failure into text suitable for the console or CLI.
func GetUserFriendlyMessage(err error) string {
	if authErr, ok := errors.AsType[*AuthenticationError](err); ok {
		if msg, found := friendlyMessages[authErr.Type]; found {
			return msg
		}
		return "Sign-in failed. Please try again."
	}
	if oauthErr, ok := errors.AsType[*OAuthError](err); ok {
		switch oauthErr.Code {
		case "access_denied":
			return "Sign-in was cancelled or denied at GitLab."
		case "invalid_request", "invalid_scope":
			return "GitLab rejected the sign-in request. Please try again."
		case "server_error", "temporarily_unavailable":
			return "GitLab reported a server error. Please try again later."
		}
		if oauthErr.Description != "" {
			return "Sign-in failed: " + oauthErr.Description
		}
		return "Sign-in failed: " + oauthErr.Code
	}
	return "An unexpected error occurred. Please try again."
}
