// Package util provides helpers shared across the console: log level management,
// filesystem paths, proxy-aware HTTP clients and masking of secrets in logs.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/userdesk/userdesk/internal/config"
)

// SetLogLevel applies cfg.Debug to the global logrus level and notes the switch.
func SetLogLevel(cfg *config.Config) {
	if cfg == nil {
		return
	}
	want := log.InfoLevel
	if cfg.Debug {
		want = log.DebugLevel
	}
	if previous := log.GetLevel(); previous != want {
		log.SetLevel(want)
		log.Infof("log level %s -> %s", previous, want)
	}
}

// ResolveAuthDir expands a leading ~ in the session directory and cleans the result.
// An empty input stays empty so callers can fall back to their own default.
func ResolveAuthDir(authDir string) (string, error) {
	rest, hasTilde := strings.CutPrefix(authDir, "~")
	switch {
	case authDir == "":
		return "", nil
	case !hasTilde:
		return filepath.Clean(authDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve auth dir: %w", err)
	}
	rest = strings.TrimLeft(strings.ReplaceAll(rest, "\\", "/"), "/")
	return filepath.Join(home, filepath.FromSlash(rest)), nil
}

// WritablePath returns WRITABLE_PATH when set; read-only images point it at a mounted volume.
func WritablePath() string {
	value := strings.TrimSpace(os.Getenv("WRITABLE_PATH"))
	if value == "" {
		return ""
	}
	return filepath.Clean(value)
}
