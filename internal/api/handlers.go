package api

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/userdesk/userdesk/internal/auth/gitlab"
	"github.com/userdesk/userdesk/internal/buildinfo"
	"github.com/userdesk/userdesk/internal/logging"
	"github.com/userdesk/userdesk/internal/util"
)

// restoreAuthState completes a pending login before any page renders. When the exchange
// navigates (post-login target or the unknown-user page) the request ends with a redirect.
func (s *Server) restoreAuthState() gin.HandlerFunc {
	return func(c *gin.Context) {
		loc := newRequestLocation(c)
		s.auth.RestoreAuthState(c.Request.Context(), loc)
		if loc.redirect(c) {
			return
		}
		c.Next()
	}
}

func (s *Server) home(c *gin.Context) {
	loc := newRequestLocation(c)
	token := s.auth.GetToken(c.Request.Context(), loc)
	if loc.redirect(c) {
		return
	}

	if token == "" {
		s.renderPage(c, http.StatusOK, Page{
			Title:        "Welcome",
			Message:      "Sign in with GitLab to continue.",
			PrimaryHref:  "/login?redirectTo=" + url.QueryEscape(c.Request.URL.Path),
			PrimaryLabel: "Log in",
		})
		return
	}
	s.renderPage(c, http.StatusOK, Page{
		Title:          "Signed in",
		Message:        "Your GitLab session is active.",
		Token:          util.MaskToken(token),
		PrimaryHref:    "/api/userinfo",
		PrimaryLabel:   "View profile",
		SecondaryHref:  "/logout",
		SecondaryLabel: "Log out",
	})
}

func (s *Server) login(c *gin.Context) {
	loc := newRequestLocation(c)
	s.auth.Login(c.Request.Context(), loc)
	if loc.redirect(c) {
		return
	}
	s.renderPage(c, http.StatusInternalServerError, Page{
		Title:   "Login unavailable",
		Message: gitlab.GetUserFriendlyMessage(gitlab.ErrConfigurationMissing),
	})
}

func (s *Server) logout(c *gin.Context) {
	if err := s.auth.Logout(c.Request.Context()); err != nil {
		log.Warnf("logout: %v", err)
	}
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) unknownUser(c *gin.Context) {
	s.renderPage(c, http.StatusOK, Page{
		Title:        "Unknown user",
		Message:      gitlab.GetUserFriendlyMessage(gitlab.ErrUnauthorized),
		PrimaryHref:  "/login",
		PrimaryLabel: "Try another account",
	})
}

func (s *Server) session(c *gin.Context) {
	loc := newRequestLocation(c)
	token := s.auth.GetToken(c.Request.Context(), loc)
	c.JSON(http.StatusOK, gin.H{
		"type":          s.auth.Type(),
		"authenticated": token != "",
		"token":         util.MaskToken(token),
	})
}

func (s *Server) userInfo(c *gin.Context) {
	loc := newRequestLocation(c)
	if s.auth.GetToken(c.Request.Context(), loc) == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	info, err := s.auth.UserInfo(c.Request.Context(), loc)
	if err != nil {
		status := http.StatusBadGateway
		if gitlab.IsUnauthorized(err) {
			status = http.StatusUnauthorized
		}
		log.Errorf("userinfo: %v", err)
		c.JSON(status, gin.H{"error": gitlab.GetUserFriendlyMessage(err)})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) healthz(c *gin.Context) {
	logging.SkipGinRequestLogging(c)
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"build":  buildinfo.String(),
	})
}

func (s *Server) renderPage(c *gin.Context, status int, page Page) {
	body, err := RenderPage(page)
	if err != nil {
		log.Errorf("render page: %v", err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", body)
}
