package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/userdesk/userdesk/internal/auth/gitlab"
	"github.com/userdesk/userdesk/internal/config"
	"github.com/userdesk/userdesk/internal/store"
	sdkauth "github.com/userdesk/userdesk/sdk/auth"
)

const testRedirectURI = "http://localhost:8910"

func newFakeProvider(t *testing.T, tokenStatus int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/oauth/token":
			w.WriteHeader(tokenStatus)
			if tokenStatus != http.StatusOK {
				_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"glpat-access-0001","refresh_token":"refresh-1","token_type":"Bearer","expires_in":7200}`))
		case "/oauth/userinfo":
			if r.Header.Get("Authorization") != "Bearer glpat-access-0001" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"sub":"42","name":"Ada","nickname":"ada","email":"ada@example.com"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, authority string) (*Server, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Debug: true,
		GitLab: config.GitLabConfig{
			ClientID:    "client-123",
			RedirectURI: testRedirectURI,
			Authority:   authority,
		},
	}
	mem := store.NewMemoryStore()
	return NewServer(cfg, sdkauth.NewGitlabAuthenticator(cfg, mem)), mem
}

func serve(s *Server, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	s.Handler().ServeHTTP(w, req)
	return w
}

// loginState runs /login and returns the state the provider would echo back.
func loginState(t *testing.T, s *Server, target string) string {
	t.Helper()
	w := serve(s, target)
	if w.Code != http.StatusFound {
		t.Fatalf("GET %s status = %d, want 302", target, w.Code)
	}
	authorizeURL, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	return authorizeURL.Query().Get("state")
}

func signIn(t *testing.T, s *Server) {
	t.Helper()
	state := loginState(t, s, "/login")
	w := serve(s, "/?code=code-1&state="+url.QueryEscape(state))
	if w.Code != http.StatusFound {
		t.Fatalf("callback status = %d, want 302", w.Code)
	}
}

func TestHomeSignedOut(t *testing.T) {
	s, _ := newTestServer(t, "https://gitlab.example.com")

	w := serve(s, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/login?redirectTo=%2F") {
		t.Fatalf("login link missing from body: %s", w.Body.String())
	}
}

func TestLoginRedirectsToProvider(t *testing.T) {
	s, mem := newTestServer(t, "https://gitlab.example.com")

	w := serve(s, "/login?redirectTo=%2Fprofile")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	location, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	if got := location.Scheme + "://" + location.Host + location.Path; got != "https://gitlab.example.com/oauth/authorize" {
		t.Fatalf("authorize endpoint = %q", got)
	}
	query := location.Query()
	if query.Get("client_id") != "client-123" || query.Get("redirect_uri") != testRedirectURI {
		t.Fatalf("unexpected authorize query: %v", query)
	}
	if query.Get("code_challenge_method") != "S256" {
		t.Fatalf("code_challenge_method = %q", query.Get("code_challenge_method"))
	}
	if _, ok, _ := mem.Get(context.Background(), gitlab.PendingRequestKey); !ok {
		t.Fatal("pending request was not stored")
	}
}

func TestLoginWithoutConfiguration(t *testing.T) {
	s, _ := newTestServer(t, "not a url")

	w := serve(s, "/login")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestCallbackCompletesLogin(t *testing.T) {
	provider := newFakeProvider(t, http.StatusOK)
	s, _ := newTestServer(t, provider.URL)

	state := loginState(t, s, "/login?redirectTo=%2Fprofile")
	w := serve(s, "/?code=code-1&state="+url.QueryEscape(state))
	if w.Code != http.StatusFound {
		t.Fatalf("callback status = %d, want 302", w.Code)
	}
	if got := w.Header().Get("Location"); got != testRedirectURI+"/profile" {
		t.Fatalf("post-login Location = %q", got)
	}

	w = serve(s, "/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "glpa...0001") {
		t.Fatalf("home after login: status %d body %s", w.Code, w.Body.String())
	}

	w = serve(s, "/api/session")
	var session struct {
		Type          string `json:"type"`
		Authenticated bool   `json:"authenticated"`
		Token         string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if !session.Authenticated || session.Type != "custom" || session.Token != "glpa...0001" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestCallbackUnauthorizedRedirectsToUnknownUser(t *testing.T) {
	provider := newFakeProvider(t, http.StatusUnauthorized)
	s, mem := newTestServer(t, provider.URL)

	state := loginState(t, s, "/login")
	w := serve(s, "/?code=code-1&state="+url.QueryEscape(state))
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/unknown-user" {
		t.Fatalf("Location = %q, want /unknown-user", got)
	}
	if _, ok, _ := mem.Get(context.Background(), gitlab.TokenKey); ok {
		t.Fatal("token stored after unauthorized exchange")
	}

	w = serve(s, "/unknown-user")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Unknown user") {
		t.Fatalf("unknown-user page: status %d", w.Code)
	}
}

func TestUserInfo(t *testing.T) {
	provider := newFakeProvider(t, http.StatusOK)
	s, _ := newTestServer(t, provider.URL)

	w := serve(s, "/api/userinfo")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("signed-out status = %d, want 401", w.Code)
	}

	signIn(t, s)

	w = serve(s, "/api/userinfo")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var info gitlab.UserInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode userinfo: %v", err)
	}
	if info.Email != "ada@example.com" || info.Subject != "42" {
		t.Fatalf("unexpected userinfo: %+v", info)
	}
}

func TestLogout(t *testing.T) {
	provider := newFakeProvider(t, http.StatusOK)
	s, mem := newTestServer(t, provider.URL)
	signIn(t, s)

	w := serve(s, "/logout")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
		t.Fatalf("logout: status %d Location %q", w.Code, w.Header().Get("Location"))
	}
	if _, ok, _ := mem.Get(context.Background(), gitlab.TokenKey); ok {
		t.Fatal("token survived logout")
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, "https://gitlab.example.com")

	w := serve(s, "/healthz")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz: status %d body %s", w.Code, w.Body.String())
	}
}

func TestRequestLocationHref(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?code=a&state=b", nil)
	c.Request.Host = "console.local"
	c.Request.Header.Set("X-Forwarded-Proto", "https")

	loc := newRequestLocation(c)
	if got := loc.Href(); got != "https://console.local/?code=a&state=b" {
		t.Fatalf("Href() = %q", got)
	}
	loc.Assign("/first")
	loc.Assign("/second")
	if !loc.redirect(c) || w.Header().Get("Location") != "/first" {
		t.Fatalf("redirect Location = %q, want /first", w.Header().Get("Location"))
	}
}

func TestProviderErrorRedirectDiscardsPendingLogin(t *testing.T) {
	s, mem := newTestServer(t, "https://gitlab.example.com")
	state := loginState(t, s, "/login")

	w := serve(s, "/?error=access_denied&error_description=denied&state="+url.QueryEscape(state))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if _, ok, _ := mem.Get(context.Background(), gitlab.PendingRequestKey); ok {
		t.Fatal("pending request should be discarded after an error redirect")
	}
	if !strings.Contains(w.Body.String(), "/login?redirectTo=") {
		t.Fatalf("expected the signed-out page, got %s", w.Body.String())
	}
}
