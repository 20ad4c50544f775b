package auth

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/userdesk/userdesk/internal/auth/gitlab"
	"github.com/userdesk/userdesk/internal/config"
	"github.com/userdesk/userdesk/internal/util"
)

// TypeCustom marks the authenticator as a custom (non-hosted) identity integration.
const TypeCustom = "custom"

// GitlabAuthenticator delegates every call to a shared gitlab.Client.
type GitlabAuthenticator struct {
	client         *gitlab.Client
	revokeOnLogout bool
}

var _ Authenticator = (*GitlabAuthenticator)(nil)

// NewGitlabAuthenticator builds the OAuth client from cfg. When storage is nil the
// registered token store is used.
func NewGitlabAuthenticator(cfg *config.Config, storage gitlab.Storage) *GitlabAuthenticator {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if storage == nil {
		storage = GetTokenStore()
	}
	client := gitlab.NewClient(
		cfg.GitLab.ClientID,
		cfg.GitLab.RedirectURI,
		cfg.GitLab.Authority,
		storage,
		gitlab.WithHTTPClient(util.NewHTTPClient(&cfg.SDKConfig, 0)),
		gitlab.WithExchangeTimeout(cfg.GitLab.ExchangeTimeout),
		gitlab.WithUnknownUserPath(cfg.GitLab.UnknownUserPath),
	)
	return &GitlabAuthenticator{client: client, revokeOnLogout: cfg.GitLab.RevokeOnLogout}
}

// NewGitlabAuthenticatorFromClient wraps an existing client.
func NewGitlabAuthenticatorFromClient(client *gitlab.Client, revokeOnLogout bool) *GitlabAuthenticator {
	return &GitlabAuthenticator{client: client, revokeOnLogout: revokeOnLogout}
}

// Client returns the underlying OAuth client.
func (a *GitlabAuthenticator) Client() *gitlab.Client {
	return a.client
}

func (a *GitlabAuthenticator) Type() string {
	return TypeCustom
}

// RestoreAuthState completes a pending login when loc is the provider's redirect.
// An error redirect settles and discards the pending login.
func (a *GitlabAuthenticator) RestoreAuthState(ctx context.Context, loc Location) {
	if loc == nil {
		return
	}
	if href := loc.Href(); !gitlab.HasAuthorizationResponse(href) && !gitlab.HasProviderErrorResponse(href) {
		return
	}
	a.client.CompleteAuthorizationRequestIfPossible(ctx, loc)
}

func (a *GitlabAuthenticator) Login(ctx context.Context, loc Location) {
	a.client.Login(ctx, loc)
}

// Logout signs the user out, revoking the access token first when configured to.
// A failed revocation is returned but never prevents the local sign-out.
func (a *GitlabAuthenticator) Logout(ctx context.Context) error {
	var errRevoke error
	if a.revokeOnLogout {
		if errRevoke = a.client.RevokeToken(ctx); errRevoke != nil {
			log.Warnf("token revocation failed: %v", errRevoke)
			errRevoke = fmt.Errorf("revoke token: %w", errRevoke)
		}
	}
	a.client.SignOut(ctx)
	return errRevoke
}

func (a *GitlabAuthenticator) GetToken(ctx context.Context, loc Location) string {
	return a.client.GetToken(ctx, loc)
}

// GetUserMetadata returns the access token, or "" when nobody is signed in.
func (a *GitlabAuthenticator) GetUserMetadata(ctx context.Context, loc Location) string {
	return a.client.GetToken(ctx, loc)
}

// IsAuthenticated reports whether a session is persisted.
func (a *GitlabAuthenticator) IsAuthenticated(ctx context.Context) bool {
	return a.client.IsAuthenticated(ctx)
}

// UserInfo returns the provider's claims for the signed-in user.
func (a *GitlabAuthenticator) UserInfo(ctx context.Context, loc Location) (*gitlab.UserInfo, error) {
	return a.client.UserInfo(ctx, loc)
}
