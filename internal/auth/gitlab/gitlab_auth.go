package gitlab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Storage keys.
const (
	// TokenKey holds the persisted TokenState.
	TokenKey = "token"
	// PendingRequestKey holds the AuthorizationRequest of the login attempt in progress.
	PendingRequestKey = "pending_authorization"
)

const (
	// DefaultExchangeTimeout bounds a single token endpoint round trip.
	DefaultExchangeTimeout = 30 * time.Second
	// DefaultUnknownUserPath is where unauthorized exchanges send the user.
	DefaultUnknownUserPath = "/unknown-user"

	grantTypeAuthorizationCode = "authorization_code"
	grantTypeRefreshToken      = "refresh_token"

	maxConsumedCodes = 64
)

// Client drives the authorization code flow for one user against one provider.
// A single Client is created at startup and shared by every consumer.
type Client struct {
	clientID        string
	redirectURI     string
	configuration   *ProviderConfiguration
	storage         Storage
	httpClient      *http.Client
	exchangeTimeout time.Duration
	unknownUserPath string
	now             func() time.Time

	flight singleflight.Group

	mu            sync.Mutex
	tokenState    *TokenState
	notifier      *authorizationNotifier
	consumedCodes []string
	// generation is bumped by SignOut; an exchange started under an older generation
	// does not persist its result.
	generation uint64
}

// errSignedOutDuringExchange is returned by a flight whose session ended while it ran.
var errSignedOutDuringExchange = errors.New("signed out while the token exchange was in flight")

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for token, userinfo and revocation calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithExchangeTimeout bounds each token endpoint call.
func WithExchangeTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.exchangeTimeout = timeout
		}
	}
}

// WithUnknownUserPath overrides the page shown after an unauthorized exchange.
func WithUnknownUserPath(path string) Option {
	return func(c *Client) {
		if strings.TrimSpace(path) != "" {
			c.unknownUserPath = strings.TrimSpace(path)
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates the OAuth client. It never fails: when the provider configuration cannot
// be derived from authority, the error is logged and every flow operation becomes a no-op.
func NewClient(clientID, redirectURI, authority string, storage Storage, opts ...Option) *Client {
	c := &Client{
		clientID:        strings.TrimSpace(clientID),
		redirectURI:     strings.TrimSpace(redirectURI),
		storage:         storage,
		httpClient:      &http.Client{},
		exchangeTimeout: DefaultExchangeTimeout,
		unknownUserPath: DefaultUnknownUserPath,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	configuration, err := NewProviderConfiguration(authority)
	if err != nil {
		log.Error(NewAuthenticationError(ErrConfigurationMissing, err))
		return c
	}
	c.configuration = configuration
	return c
}

// Configuration returns the provider endpoints, or nil when they could not be derived.
func (c *Client) Configuration() *ProviderConfiguration {
	return c.configuration
}

// RedirectURI returns the URI the provider sends the browser back to.
func (c *Client) RedirectURI() string {
	return c.redirectURI
}

func (c *Client) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: c.redirectURI,
		Scopes:      []string{Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.configuration.AuthorizationEndpoint,
			TokenURL:  c.configuration.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// authorizationURL renders the provider redirect for req.
func (c *Client) authorizationURL(req *AuthorizationRequest) string {
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(req.Internal.CodeVerifier)}
	for key, value := range req.Extras {
		opts = append(opts, oauth2.SetAuthURLParam(key, value))
	}
	return c.oauth2Config().AuthCodeURL(req.State, opts...)
}

// Login starts a new authorization attempt and navigates loc to the provider.
// The "redirectTo" query parameter of loc is remembered for after the login.
func (c *Client) Login(ctx context.Context, loc Location) {
	if c.configuration == nil {
		log.Error(ErrConfigurationMissing)
		return
	}

	req, err := newAuthorizationRequest(c.clientID, c.redirectURI, locationQueryParam(loc, "redirectTo"), c.now())
	if err != nil {
		log.Errorf("gitlab auth: build authorization request: %v", err)
		return
	}
	raw, err := marshalAuthorizationRequest(req)
	if err != nil {
		log.Errorf("gitlab auth: %v", err)
		return
	}
	if err = c.storage.Set(ctx, PendingRequestKey, raw); err != nil {
		log.Errorf("gitlab auth: persist authorization request: %v", err)
		return
	}

	c.mu.Lock()
	c.notifier = newAuthorizationNotifier()
	c.mu.Unlock()

	log.Debug("gitlab auth: redirecting to authorization endpoint")
	navigate(loc, c.authorizationURL(req))
}

// RestoreAuthState must run on every page load before gated content renders.
// It completes the pending attempt when loc is the provider's redirect, including an
// error redirect, which discards the attempt.
func (c *Client) RestoreAuthState(ctx context.Context, loc Location) {
	href := locationHref(loc)
	if !HasAuthorizationResponse(href) && !HasProviderErrorResponse(href) {
		return
	}
	c.CompleteAuthorizationRequestIfPossible(ctx, loc)
}

// CompleteAuthorizationRequestIfPossible exchanges the code carried by loc, or, when loc
// carries none, refreshes a persisted token. Failures sign the user out and are logged.
func (c *Client) CompleteAuthorizationRequestIfPossible(ctx context.Context, loc Location) {
	resp, err := ParseAuthorizationResponse(locationHref(loc))
	if err != nil {
		log.Warnf("gitlab auth: ignoring unparsable location: %v", err)
		resp = nil
	}
	c.completeAuthorization(ctx, loc, resp, "", false)
}

// exchangePlan is one token endpoint call decided from the current state.
type exchangePlan struct {
	grantType    string
	code         string
	verifier     string
	refreshToken string
	request      *AuthorizationRequest
	response     *AuthorizationResponse
	// redirectTo is the path captured before a silent refresh.
	redirectTo string
	// onlyIfExpired skips the network call when another caller already refreshed.
	onlyIfExpired bool
	// generation is the sign-out generation observed before the plan was made.
	generation uint64
}

func (p *exchangePlan) flightKey() string {
	if p.grantType == grantTypeAuthorizationCode {
		return grantTypeAuthorizationCode + ":" + p.code
	}
	return grantTypeRefreshToken
}

func (p *exchangePlan) postLoginPath() string {
	if p.request != nil {
		return p.request.RedirectTo()
	}
	return p.redirectTo
}

func (c *Client) completeAuthorization(ctx context.Context, loc Location, resp *AuthorizationResponse, redirectTo string, onlyIfExpired bool) {
	if c.configuration == nil {
		log.Error(ErrConfigurationMissing)
		return
	}

	generation := c.currentGeneration()
	plan, err := c.planExchange(ctx, resp)
	if err != nil {
		c.settleFailure(ctx, loc, resp, err)
		return
	}
	if plan == nil {
		return
	}
	plan.redirectTo = redirectTo
	plan.onlyIfExpired = onlyIfExpired
	plan.generation = generation

	value, err, shared := c.flight.Do(plan.flightKey(), func() (any, error) {
		return c.exchangeAndPersist(ctx, plan)
	})
	if shared {
		log.Debugf("gitlab auth: joined in-flight %s exchange", plan.grantType)
	}
	if err != nil {
		c.settleFailure(ctx, loc, resp, err)
		return
	}

	state, _ := value.(*TokenState)
	if resp != nil {
		c.resolveAttempt(&AuthorizationResult{Response: *resp, Token: state})
	}

	target := c.redirectURI
	if path := plan.postLoginPath(); isRelativePath(path) {
		target = strings.TrimRight(c.redirectURI, "/") + path
	}
	navigate(loc, target)
}

// planExchange decides which grant to use. It returns nil when there is nothing to exchange.
func (c *Client) planExchange(ctx context.Context, resp *AuthorizationResponse) (*exchangePlan, error) {
	if resp != nil {
		if resp.Code != "" && c.isConsumed(resp.Code) {
			return nil, NewAuthenticationError(ErrReplayedCode, nil)
		}
		pending, err := c.loadPendingRequest(ctx)
		if err != nil {
			return nil, NewAuthenticationError(ErrStateMismatch, err)
		}
		if pending == nil {
			return nil, NewAuthenticationError(ErrStateMismatch, fmt.Errorf("no pending authorization request"))
		}
		if pending.State != resp.State {
			return nil, NewAuthenticationError(ErrStateMismatch, nil)
		}
		if resp.Error != "" {
			c.deletePendingRequest(ctx)
			return nil, NewOAuthError(resp.Error, resp.ErrorDescription, http.StatusBadRequest)
		}
		return &exchangePlan{
			grantType: grantTypeAuthorizationCode,
			code:      resp.Code,
			verifier:  pending.Internal.CodeVerifier,
			request:   pending,
			response:  resp,
		}, nil
	}

	state, err := c.loadTokenState(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil || state.RefreshToken == "" {
		return nil, nil
	}
	return &exchangePlan{
		grantType:    grantTypeRefreshToken,
		refreshToken: state.RefreshToken,
	}, nil
}

// settleFailure routes a failed completion. Forged or repeated redirects and exchanges
// overtaken by SignOut leave the current session alone; everything else signs out.
func (c *Client) settleFailure(ctx context.Context, loc Location, resp *AuthorizationResponse, err error) {
	switch {
	case IsErrorType(err, ErrStateMismatch), IsErrorType(err, ErrReplayedCode):
		log.Warnf("gitlab auth: rejected authorization response: %v", err)
	case errors.Is(err, errSignedOutDuringExchange):
		log.Debugf("gitlab auth: %v", err)
		if resp != nil {
			c.resolveAttempt(&AuthorizationResult{Response: *resp, Err: err})
		}
	default:
		c.fail(ctx, loc, resp, err)
	}
}

// exchangeAndPersist runs inside the single flight for plan: it calls the token endpoint,
// merges the response into the stored state and persists it.
func (c *Client) exchangeAndPersist(ctx context.Context, plan *exchangePlan) (*TokenState, error) {
	if plan.grantType == grantTypeAuthorizationCode {
		// The code is single use whatever the provider answers.
		if !c.claimCode(plan.code) {
			return nil, NewAuthenticationError(ErrReplayedCode, nil)
		}
		pending, err := c.loadPendingRequest(ctx)
		if err != nil || pending == nil || pending.State != plan.response.State {
			return nil, NewAuthenticationError(ErrStateMismatch, err)
		}
		defer c.deletePendingRequest(ctx)
	}

	if plan.onlyIfExpired {
		if current, err := c.loadTokenState(ctx); err == nil && current != nil && !current.Expired(c.now()) {
			return current, nil
		}
	}

	flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.exchangeTimeout)
	defer cancel()
	flightCtx = context.WithValue(flightCtx, oauth2.HTTPClient, c.httpClient)

	conf := c.oauth2Config()
	var (
		token *oauth2.Token
		err   error
	)
	switch plan.grantType {
	case grantTypeAuthorizationCode:
		log.Debug("gitlab auth: exchanging authorization code")
		token, err = conf.Exchange(flightCtx, plan.code, oauth2.VerifierOption(plan.verifier))
	default:
		log.Debug("gitlab auth: refreshing access token")
		token, err = conf.TokenSource(flightCtx, &oauth2.Token{RefreshToken: plan.refreshToken}).Token()
	}
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	fresh := tokenStateFromOAuth2(token, c.now())
	return c.mergeAndStore(ctx, fresh, plan.generation)
}

// mergeAndStore persists fresh over the stored state unless SignOut ran after generation
// was observed.
func (c *Client) mergeAndStore(ctx context.Context, fresh *TokenState, generation uint64) (*TokenState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return nil, errSignedOutDuringExchange
	}

	merged := &TokenState{}
	if raw, ok, err := c.storage.Get(ctx, TokenKey); err == nil && ok {
		if existing, errParse := UnmarshalTokenState(raw); errParse == nil {
			merged = existing
		}
	}
	merged.Merge(fresh)

	raw, err := merged.Marshal()
	if err != nil {
		return nil, err
	}
	if err = c.storage.Set(ctx, TokenKey, raw); err != nil {
		return nil, fmt.Errorf("persist token state: %w", err)
	}
	c.tokenState = merged
	log.Debug("gitlab auth: token state persisted")
	return merged, nil
}

// fail settles a failed attempt: sign out, log, and route unauthorized users away.
func (c *Client) fail(ctx context.Context, loc Location, resp *AuthorizationResponse, err error) {
	c.SignOut(ctx)
	log.Errorf("gitlab auth: %v", err)
	if resp != nil {
		c.resolveAttempt(&AuthorizationResult{Response: *resp, Err: err})
	}
	if IsUnauthorized(err) {
		navigate(loc, c.unknownUserPath)
	}
}

// GetToken returns the current access token, refreshing it first when it has expired.
// It returns "" when no session exists; it never fails.
func (c *Client) GetToken(ctx context.Context, loc Location) string {
	state, err := c.loadTokenState(ctx)
	if err != nil {
		c.SignOut(ctx)
		log.Errorf("gitlab auth: %v", err)
		return ""
	}
	if state == nil {
		return ""
	}

	if state.Expired(c.now()) {
		redirectTo := ""
		if path := locationPath(loc); isRelativePath(path) {
			redirectTo = path
		}
		c.completeAuthorization(ctx, loc, nil, redirectTo, true)

		state, err = c.loadTokenState(ctx)
		if err != nil {
			c.SignOut(ctx)
			log.Errorf("gitlab auth: %v", err)
			return ""
		}
		if state == nil {
			return ""
		}
	}
	return state.AccessToken
}

// IsAuthenticated reports whether a token state with an access token is persisted.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	state, err := c.loadTokenState(ctx)
	if err != nil {
		c.SignOut(ctx)
		log.Errorf("gitlab auth: %v", err)
		return false
	}
	return state != nil && state.AccessToken != ""
}

// SignOut forgets all cached token state. It is safe to call without a session.
func (c *Client) SignOut(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.tokenState = nil
	if c.storage == nil {
		return
	}
	if err := c.storage.Delete(ctx, TokenKey); err != nil {
		log.Warnf("gitlab auth: remove token state: %v", err)
	}
}

// AwaitAuthorization blocks until the attempt started by the last Login settles.
func (c *Client) AwaitAuthorization(ctx context.Context) (*AuthorizationResult, error) {
	c.mu.Lock()
	n := c.notifier
	c.mu.Unlock()
	if n == nil {
		return nil, fmt.Errorf("gitlab auth: no authorization attempt in progress")
	}
	result, err := n.wait(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewAuthenticationError(ErrCallbackTimeout, err)
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) resolveAttempt(result *AuthorizationResult) {
	c.mu.Lock()
	n := c.notifier
	c.mu.Unlock()
	if n != nil {
		n.resolve(result)
	}
}

// loadTokenState reads the persisted state. It returns nil, nil when no session exists.
func (c *Client) loadTokenState(ctx context.Context) (*TokenState, error) {
	if c.storage == nil {
		return nil, nil
	}
	raw, ok, err := c.storage.Get(ctx, TokenKey)
	if err != nil {
		return nil, NewAuthenticationError(ErrStorageCorruption, err)
	}
	if !ok {
		c.mu.Lock()
		c.tokenState = nil
		c.mu.Unlock()
		return nil, nil
	}
	state, err := UnmarshalTokenState(raw)
	if err != nil {
		return nil, NewAuthenticationError(ErrStorageCorruption, err)
	}
	c.mu.Lock()
	c.tokenState = state
	c.mu.Unlock()
	return state, nil
}

func (c *Client) loadPendingRequest(ctx context.Context) (*AuthorizationRequest, error) {
	raw, ok, err := c.storage.Get(ctx, PendingRequestKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return unmarshalAuthorizationRequest(raw)
}

func (c *Client) deletePendingRequest(ctx context.Context) {
	if err := c.storage.Delete(ctx, PendingRequestKey); err != nil {
		log.Warnf("gitlab auth: remove pending authorization request: %v", err)
	}
}

func (c *Client) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Client) isConsumed(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Contains(c.consumedCodes, code)
}

// claimCode marks code consumed and reports false when it already was.
func (c *Client) claimCode(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Contains(c.consumedCodes, code) {
		return false
	}
	c.consumedCodes = append(c.consumedCodes, code)
	if len(c.consumedCodes) > maxConsumedCodes {
		c.consumedCodes = c.consumedCodes[len(c.consumedCodes)-maxConsumedCodes:]
	}
	return true
}

// UserInfo describes the signed-in user as reported by the userinfo endpoint.
type UserInfo struct {
	Subject  string `json:"sub"`
	Name     string `json:"name,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Email    string `json:"email,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Profile  string `json:"profile,omitempty"`
}

// UserInfo fetches the claims of the signed-in user with the current access token.
func (c *Client) UserInfo(ctx context.Context, loc Location) (*UserInfo, error) {
	if c.configuration == nil {
		return nil, ErrConfigurationMissing
	}
	accessToken := c.GetToken(ctx, loc)
	if accessToken == "" {
		return nil, NewAuthenticationError(ErrUnauthorized, fmt.Errorf("not signed in"))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.exchangeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.configuration.UserinfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewAuthenticationError(ErrNetworkFailure, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read userinfo response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, NewAuthenticationError(ErrUnauthorized, fmt.Errorf("userinfo rejected the access token"))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("userinfo request failed with status %d: %s", resp.StatusCode, string(body))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("userinfo response is not valid JSON")
	}

	return &UserInfo{
		Subject:  gjson.GetBytes(body, "sub").String(),
		Name:     gjson.GetBytes(body, "name").String(),
		Nickname: gjson.GetBytes(body, "nickname").String(),
		Email:    gjson.GetBytes(body, "email").String(),
		Picture:  gjson.GetBytes(body, "picture").String(),
		Profile:  gjson.GetBytes(body, "profile").String(),
	}, nil
}

// RevokeToken asks the provider to revoke the persisted access token.
// It does not touch local state; callers sign out afterwards.
func (c *Client) RevokeToken(ctx context.Context) error {
	if c.configuration == nil {
		return ErrConfigurationMissing
	}
	state, err := c.loadTokenState(ctx)
	if err != nil || state == nil || state.AccessToken == "" {
		return err
	}

	form := url.Values{
		"token":     {state.AccessToken},
		"client_id": {c.clientID},
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.exchangeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.configuration.RevocationEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewAuthenticationError(ErrNetworkFailure, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("token revocation failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
