// Package auth exposes the authentication context consumed by the console and the CLI.
// It is a thin facade over the OAuth client in internal/auth/gitlab.
package auth

import (
	"context"

	"github.com/userdesk/userdesk/internal/auth/gitlab"
)

// Location is the page an authentication call acts on. See gitlab.Location.
type Location = gitlab.Location

// Authenticator is the auth context contract: restore on page load, log in, log out and read tokens.
type Authenticator interface {
	// Type identifies the implementation to the consumer. Always "custom".
	Type() string
	RestoreAuthState(ctx context.Context, loc Location)
	Login(ctx context.Context, loc Location)
	Logout(ctx context.Context) error
	GetToken(ctx context.Context, loc Location) string
	GetUserMetadata(ctx context.Context, loc Location) string
}
