package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	log "github.com/sirupsen/logrus"
	"github.com/userdesk/userdesk/internal/auth/gitlab"
	"github.com/userdesk/userdesk/internal/config"
	"github.com/userdesk/userdesk/internal/util"
	sdkAuth "github.com/userdesk/userdesk/sdk/auth"
)

var clipboardWriteAll = clipboard.WriteAll

// DoLogout signs the user out, revoking the token first when configured to.
func DoLogout(cfg *config.Config) {
	authenticator := newAuthenticator(cfg)
	if err := authenticator.Logout(context.Background()); err != nil {
		log.Warnf("logout: %v", err)
	}
	fmt.Println("Signed out.")
}

// DoPrintToken prints the current access token, refreshing it when expired.
// With copyToClipboard the token is copied instead of printed.
func DoPrintToken(cfg *config.Config, copyToClipboard bool) {
	authenticator := newAuthenticator(cfg)
	if err := printToken(context.Background(), authenticator, cfg, copyToClipboard, os.Stdout); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func printToken(ctx context.Context, authenticator *sdkAuth.GitlabAuthenticator, cfg *config.Config, copyToClipboard bool, out io.Writer) error {
	loc := gitlab.NewStaticLocation(cfg.GitLab.RedirectURI)
	token := authenticator.GetToken(ctx, loc)
	if token == "" {
		return fmt.Errorf("not signed in; run with -login first")
	}

	if copyToClipboard {
		if err := clipboardWriteAll(token); err != nil {
			return fmt.Errorf("copy token to clipboard: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Copied access token %s to the clipboard.\n", util.MaskToken(token))
		return nil
	}
	_, _ = fmt.Fprintln(out, token)
	return nil
}
