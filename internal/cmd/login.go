package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/userdesk/userdesk/internal/auth/gitlab"
	"github.com/userdesk/userdesk/internal/browser"
	"github.com/userdesk/userdesk/internal/config"
	"github.com/userdesk/userdesk/internal/util"
	sdkAuth "github.com/userdesk/userdesk/sdk/auth"
)

const (
	// callbackTimeout bounds the whole interactive login.
	callbackTimeout = 5 * time.Minute

	exitCodePortInUse = 13
)

var (
	// manualPromptDelay is how long the login waits for the browser before offering to
	// accept a pasted redirect URL.
	manualPromptDelay = 15 * time.Second

	openURL                 = browser.OpenURL
	browserAvailable        = browser.IsAvailable
	printTunnelInstructions = util.PrintSSHTunnelInstructions
)

// LoginOptions contains options for the login process.
type LoginOptions struct {
	// NoBrowser prints the authorization URL instead of opening it.
	NoBrowser bool

	// Prompt reads a pasted redirect URL when the callback cannot reach this machine.
	Prompt func(prompt string) (string, error)
}

// DoLogin signs the user in through the system browser and a loopback callback server.
func DoLogin(cfg *config.Config, options *LoginOptions) {
	if options == nil {
		options = &LoginOptions{}
	}
	if options.Prompt == nil {
		options.Prompt = defaultPrompt
	}

	authenticator := newAuthenticator(cfg)
	err := runLogin(context.Background(), authenticator, options, os.Stdout)
	if err == nil {
		return
	}

	if _, ok := errors.AsType[*portInUseError](err); ok {
		log.Error(err)
		os.Exit(exitCodePortInUse)
	}
	if authErr, ok := errors.AsType[*gitlab.AuthenticationError](err); ok {
		log.Error(gitlab.GetUserFriendlyMessage(authErr))
		return
	}
	if oauthErr, ok := errors.AsType[*gitlab.OAuthError](err); ok {
		log.Error(gitlab.GetUserFriendlyMessage(oauthErr))
		return
	}
	fmt.Printf("GitLab authentication failed: %v\n", err)
}

func runLogin(ctx context.Context, authenticator *sdkAuth.GitlabAuthenticator, options *LoginOptions, out io.Writer) error {
	client := authenticator.Client()
	if client.Configuration() == nil {
		return gitlab.ErrConfigurationMissing
	}

	server, err := newCallbackServer(client.RedirectURI(), client)
	if err != nil {
		return err
	}
	if err = server.Start(); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if errStop := server.Stop(stopCtx); errStop != nil {
			log.Warnf("login callback server stop error: %v", errStop)
		}
	}()

	loc := gitlab.NewStaticLocation(client.RedirectURI())
	authenticator.Login(ctx, loc)
	authURL := loc.LastNavigation()
	if authURL == "" {
		return fmt.Errorf("failed to start the authorization request")
	}

	if !options.NoBrowser {
		_, _ = fmt.Fprintln(out, "Opening browser for GitLab authentication")
		if !browserAvailable() {
			log.Warn("No browser available; please open the URL manually")
			showManualInstructions(ctx, out, client.RedirectURI(), authURL)
		} else if err = openURL(authURL); err != nil {
			log.Warnf("Failed to open browser automatically: %v", err)
			showManualInstructions(ctx, out, client.RedirectURI(), authURL)
		}
	} else {
		showManualInstructions(ctx, out, client.RedirectURI(), authURL)
	}

	_, _ = fmt.Fprintln(out, "Waiting for GitLab authentication callback...")

	waitCtx, cancel := context.WithTimeout(ctx, callbackTimeout)
	defer cancel()

	type outcome struct {
		result *gitlab.AuthorizationResult
		err    error
	}
	outcomeCh := make(chan outcome, 1)
	go func() {
		result, errWait := client.AwaitAuthorization(waitCtx)
		outcomeCh <- outcome{result: result, err: errWait}
	}()

	var manualPromptC <-chan time.Time
	if options.Prompt != nil {
		manualPromptTimer := time.NewTimer(manualPromptDelay)
		defer manualPromptTimer.Stop()
		manualPromptC = manualPromptTimer.C
	}

	for {
		select {
		case o := <-outcomeCh:
			if o.err != nil {
				return o.err
			}
			if o.result.Err != nil {
				return o.result.Err
			}
			_, _ = fmt.Fprintln(out, "GitLab authentication successful!")
			return nil
		case errServer := <-server.Errors():
			return errServer
		case <-manualPromptC:
			manualPromptC = nil
			input, errPrompt := options.Prompt("Paste the redirect URL from your browser (or press Enter to keep waiting): ")
			if errPrompt != nil {
				return errPrompt
			}
			input = strings.TrimSpace(input)
			if input == "" {
				continue
			}
			resp, errParse := gitlab.ParseAuthorizationResponse(input)
			if errParse != nil || resp == nil {
				_, _ = fmt.Fprintln(out, "That is not an authorization redirect; still waiting for the callback.")
				continue
			}
			client.CompleteAuthorizationRequestIfPossible(ctx, gitlab.NewStaticLocation(input))
		}
	}
}

func showManualInstructions(ctx context.Context, out io.Writer, redirectURI, authURL string) {
	if port := redirectPort(redirectURI); port > 0 {
		printTunnelInstructions(ctx, out, port)
	}
	_, _ = fmt.Fprintf(out, "Visit the following URL to continue authentication:\n%s\n", authURL)
}

func redirectPort(redirectURI string) int {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		return 0
	}
	return port
}

func defaultPrompt(prompt string) (string, error) {
	fmt.Println()
	fmt.Println(prompt)
	var value string
	_, err := fmt.Scanln(&value)
	if err != nil && err.Error() == "unexpected newline" {
		return "", nil
	}
	return value, err
}
