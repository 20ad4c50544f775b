package util

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/userdesk/userdesk/internal/config"
	"golang.org/x/net/proxy"
)

// SetProxy routes httpClient through cfg.ProxyURL. socks5, socks5h, http and https proxies
// are supported; an empty, malformed or unsupported URL leaves the client untouched.
func SetProxy(cfg *config.SDKConfig, httpClient *http.Client) *http.Client {
	if cfg == nil {
		return httpClient
	}
	raw := strings.TrimSpace(cfg.ProxyURL)
	if raw == "" {
		return httpClient
	}
	proxyURL, err := url.Parse(raw)
	if err != nil {
		log.Errorf("proxy: invalid url %q: %v", MaskProxyURL(raw), err)
		return httpClient
	}
	transport, err := proxyTransport(proxyURL)
	if err != nil {
		log.Warnf("proxy: %v; connecting directly", err)
		return httpClient
	}
	httpClient.Transport = transport
	log.Debugf("proxy: outbound requests use %s", MaskProxyURL(raw))
	return httpClient
}

func proxyTransport(proxyURL *url.URL) (*http.Transport, error) {
	switch proxyURL.Scheme {
	case "http", "https":
		return &http.Transport{Proxy: http.ProxyURL(proxyURL)}, nil
	case "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", proxyURL.Scheme)
	}

	var auth *proxy.Auth
	if user := proxyURL.User; user != nil {
		password, _ := user.Password()
		auth = &proxy.Auth{User: user.Username(), Password: password}
	}
	dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
	if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
		dial = contextDialer.DialContext
	}
	return &http.Transport{DialContext: dial}, nil
}

// NewHTTPClient returns a client with the given timeout that honors the configured proxy.
func NewHTTPClient(cfg *config.SDKConfig, timeout time.Duration) *http.Client {
	return SetProxy(cfg, &http.Client{Timeout: timeout})
}

// MaskProxyURL hides the password of a proxy URL.
func MaskProxyURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.User == nil {
		return raw
	}
	if _, hasPassword := parsed.User.Password(); hasPassword {
		parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
	}
	return parsed.String()
}
