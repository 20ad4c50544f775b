package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// requestLocation adapts a gin request to gitlab.Location. Assign records the target so the
// handler can answer with a redirect instead of rendering.
type requestLocation struct {
	href   string
	target string
}

func newRequestLocation(c *gin.Context) *requestLocation {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := strings.TrimSpace(c.GetHeader("X-Forwarded-Proto")); forwarded != "" {
		scheme = strings.ToLower(strings.Split(forwarded, ",")[0])
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: c.Request.URL.RawQuery,
	}
	return &requestLocation{href: u.String()}
}

func (l *requestLocation) Href() string {
	return l.href
}

func (l *requestLocation) Assign(target string) {
	if l.target == "" {
		l.target = target
	}
	l.href = target
}

// redirect answers 302 when the location was navigated and reports whether it did.
func (l *requestLocation) redirect(c *gin.Context) bool {
	if l.target == "" {
		return false
	}
	c.Redirect(http.StatusFound, l.target)
	c.Abort()
	return true
}
