// Package browser opens the provider's authorization page in the user's default browser.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

// launchers lists, per GOOS, the commands tried in order; each receives the URL as its last argument.
var launchers = map[string][][]string{
	"darwin":  {{"open"}},
	"windows": {{"rundll32", "url.dll,FileProtocolHandler"}},
	"linux":   {{"xdg-open"}, {"x-www-browser"}, {"www-browser"}, {"firefox"}, {"chromium"}, {"google-chrome"}},
}

// OpenURL opens url through open-golang and falls back to the first launcher found on PATH.
func OpenURL(url string) error {
	errOpen := open.Run(url)
	if errOpen == nil {
		log.Debug("browser: opened authorization URL with the system handler")
		return nil
	}
	log.Debugf("browser: system handler failed (%v), trying launchers", errOpen)

	launcher := findLauncher(runtime.GOOS)
	if launcher == nil {
		return fmt.Errorf("browser: no launcher available on %s", runtime.GOOS)
	}
	args := append(launcher[1:len(launcher):len(launcher)], url)
	cmd := exec.Command(launcher[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("browser: start %s: %w", launcher[0], err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func findLauncher(goos string) []string {
	for _, candidate := range launchers[goos] {
		if _, err := exec.LookPath(candidate[0]); err == nil {
			return candidate
		}
	}
	return nil
}

// IsAvailable reports whether this host has a command able to open a browser.
// Headless servers report false and the CLI prints the URL instead.
func IsAvailable() bool {
	return findLauncher(runtime.GOOS) != nil
}
