// Package config provides configuration management for the userdesk console.
// It handles loading and parsing YAML configuration files, overlays environment
// variables, and provides structured access to the GitLab OAuth settings, the
// token store backend, server settings and logging options.
package config

// SDKConfig holds the settings shared by every outbound HTTP client.
type SDKConfig struct {
	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	// socks5://, http:// and https:// schemes are supported.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url" env:"USERDESK_PROXY_URL"`
}
