package gitlab

import (
	"context"
	"net/url"
	"sync"
)

// Location is the page the client is acting on behalf of.
// Href returns the current absolute URL; Assign performs a full-page navigation, which
// is terminal for the current page context.
type Location interface {
	Href() string
	Assign(target string)
}

// Storage is the local key-value store holding the token state and the pending request.
// Get reports ok=false when the key is absent.
type Storage interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// StaticLocation is a Location with a fixed href that records navigations.
// It backs the CLI flows and tests.
type StaticLocation struct {
	mu      sync.Mutex
	href    string
	targets []string
}

// NewStaticLocation returns a location positioned at href.
func NewStaticLocation(href string) *StaticLocation {
	return &StaticLocation{href: href}
}

// Href returns the current URL.
func (l *StaticLocation) Href() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.href
}

// Assign records target and moves the location there.
func (l *StaticLocation) Assign(target string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.targets = append(l.targets, target)
	l.href = target
}

// Navigations returns every target assigned so far.
func (l *StaticLocation) Navigations() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.targets))
	copy(out, l.targets)
	return out
}

// LastNavigation returns the most recent target, or "" when none happened.
func (l *StaticLocation) LastNavigation() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.targets) == 0 {
		return ""
	}
	return l.targets[len(l.targets)-1]
}

func locationHref(loc Location) string {
	if loc == nil {
		return ""
	}
	return loc.Href()
}

func locationQueryParam(loc Location, key string) string {
	values, err := ParseQueryString(locationHref(loc), false)
	if err != nil {
		return ""
	}
	return values.Get(key)
}

func locationPath(loc Location) string {
	href := locationHref(loc)
	if href == "" {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return parsed.Path
}

func navigate(loc Location, target string) {
	if loc == nil || target == "" {
		return
	}
	loc.Assign(target)
}
