// Package api implements the web console: a small gin application that restores the
// authentication state on every page load, gates its content on the access token and offers
// login and logout.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/userdesk/userdesk/internal/auth/gitlab"
	"github.com/userdesk/userdesk/internal/config"
	"github.com/userdesk/userdesk/internal/logging"
	sdkauth "github.com/userdesk/userdesk/sdk/auth"
)

// Authenticator is what the console needs from the auth context.
type Authenticator interface {
	sdkauth.Authenticator
	UserInfo(ctx context.Context, loc gitlab.Location) (*gitlab.UserInfo, error)
}

// Server is the console HTTP server.
type Server struct {
	engine *gin.Engine
	server *http.Server
	cfg    *config.Config
	auth   Authenticator
}

// NewServer wires the routes and middleware of the console.
func NewServer(cfg *config.Config, authenticator Authenticator) *Server {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery())

	s := &Server{
		engine: engine,
		cfg:    cfg,
		auth:   authenticator,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.healthz)

	pages := s.engine.Group("/")
	pages.Use(s.restoreAuthState())
	{
		pages.GET("/", s.home)
		pages.GET("/login", s.login)
		pages.GET("/logout", s.logout)
		pages.GET(s.unknownUserPath(), s.unknownUser)
	}

	apiGroup := s.engine.Group("/api")
	apiGroup.Use(s.restoreAuthState())
	{
		apiGroup.GET("/session", s.session)
		apiGroup.GET("/userinfo", s.userInfo)
	}

	s.engine.NoRoute(s.restoreAuthState(), s.home)
}

func (s *Server) unknownUserPath() string {
	if s.cfg.GitLab.UnknownUserPath != "" {
		return s.cfg.GitLab.UnknownUserPath
	}
	return config.DefaultUnknownUserPath
}

// Handler returns the underlying gin engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until the server is stopped. It returns nil after a graceful Stop.
func (s *Server) Start() error {
	log.Infof("console listening on http://%s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("console server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("stopping console server")
	return s.server.Shutdown(ctx)
}
