package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/userdesk/userdesk/internal/api"
	"github.com/userdesk/userdesk/internal/auth/gitlab"
)

// resultPollTimeout bounds how long the callback handler waits for the exchange outcome
// after handing the redirect to the client.
const resultPollTimeout = 2 * time.Second

// callbackServer is the loopback HTTP server that receives the provider redirect during a
// CLI login. It listens on the host and port of the configured redirect URI.
type callbackServer struct {
	server     *http.Server
	listener   net.Listener
	baseURL    string
	listenAddr string
	client     *gitlab.Client
	errorChan  chan error

	mu      sync.Mutex
	running bool
}

func newCallbackServer(redirectURI string, client *gitlab.Client) (*callbackServer, error) {
	parsed, err := url.Parse(strings.TrimSpace(redirectURI))
	if err != nil {
		return nil, fmt.Errorf("parse redirect uri: %w", err)
	}
	if parsed.Scheme != "http" || parsed.Host == "" {
		return nil, fmt.Errorf("redirect uri %q must be an http loopback address", redirectURI)
	}
	listenAddr := parsed.Host
	if parsed.Port() == "" {
		listenAddr = net.JoinHostPort(parsed.Hostname(), "80")
	}
	return &callbackServer{
		baseURL:    parsed.Scheme + "://" + parsed.Host,
		listenAddr: listenAddr,
		client:     client,
		errorChan:  make(chan error, 1),
	}, nil
}

// Start binds the redirect URI's address and serves in the background.
func (s *callbackServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	listenAddr := s.listenAddr
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) || strings.Contains(err.Error(), "address already in use") {
			return &portInUseError{addr: listenAddr, err: err}
		}
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleCallback)

	s.listener = listener
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.running = true

	go func() {
		if errServe := s.server.Serve(listener); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			s.errorChan <- fmt.Errorf("callback server failed: %w", errServe)
		}
	}()
	return nil
}

// Addr returns the bound address.
func (s *callbackServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Errors reports a server failure after Start.
func (s *callbackServer) Errors() <-chan error {
	return s.errorChan
}

// Stop gracefully stops the server.
func (s *callbackServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}
	log.Debug("stopping login callback server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	s.running = false
	s.server = nil
	return err
}

func (s *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	href := s.baseURL + r.URL.RequestURI()
	resp, err := gitlab.ParseAuthorizationResponse(href)
	if err != nil || resp == nil {
		http.NotFound(w, r)
		return
	}
	log.Debug("received authorization redirect")

	loc := gitlab.NewStaticLocation(href)
	s.client.CompleteAuthorizationRequestIfPossible(r.Context(), loc)

	waitCtx, cancel := context.WithTimeout(r.Context(), resultPollTimeout)
	defer cancel()
	result, errWait := s.client.AwaitAuthorization(waitCtx)

	page := api.LoginSuccessPage()
	status := http.StatusOK
	switch {
	case errWait != nil:
		page = api.LoginFailurePage(gitlab.GetUserFriendlyMessage(gitlab.ErrStateMismatch))
		status = http.StatusBadRequest
	case result.Err != nil:
		page = api.LoginFailurePage(gitlab.GetUserFriendlyMessage(result.Err))
		status = http.StatusBadRequest
	}

	body, errRender := api.RenderPage(page)
	if errRender != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, errWrite := w.Write(body); errWrite != nil {
		log.Errorf("failed to write callback page: %v", errWrite)
	}
}

// portInUseError reports that the redirect URI's port is taken by another process.
type portInUseError struct {
	addr string
	err  error
}

func (e *portInUseError) Error() string {
	return fmt.Sprintf("port for %s is already in use: %v", e.addr, e.err)
}

func (e *portInUseError) Unwrap() error {
	return e.err
}
