package cmd

import (
	"github.com/userdesk/userdesk/internal/config"
	sdkAuth "github.com/userdesk/userdesk/sdk/auth"
)

// newAuthenticator creates the GitLab authenticator backed by the registered token store.
func newAuthenticator(cfg *config.Config) *sdkAuth.GitlabAuthenticator {
	return sdkAuth.NewGitlabAuthenticator(cfg, sdkAuth.GetTokenStore())
}
