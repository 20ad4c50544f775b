package gitlab

import (
	"context"
	"sync"
)

// AuthorizationResult is the outcome of one authorization attempt.
type AuthorizationResult struct {
	// Response is the redirect the provider sent back.
	Response AuthorizationResponse
	// Token is the persisted state after a successful exchange.
	Token *TokenState
	// Err is set when the attempt was rejected or the exchange failed.
	Err error
}

// authorizationNotifier is resolved exactly once per authorization attempt.
type authorizationNotifier struct {
	once   sync.Once
	done   chan struct{}
	result *AuthorizationResult
}

func newAuthorizationNotifier() *authorizationNotifier {
	return &authorizationNotifier{done: make(chan struct{})}
}

// resolve publishes the result; later calls are ignored and report false.
func (n *authorizationNotifier) resolve(result *AuthorizationResult) bool {
	resolved := false
	n.once.Do(func() {
		n.result = result
		close(n.done)
		resolved = true
	})
	return resolved
}

// wait blocks until the attempt resolves or ctx ends.
func (n *authorizationNotifier) wait(ctx context.Context) (*AuthorizationResult, error) {
	select {
	case <-n.done:
		return n.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
