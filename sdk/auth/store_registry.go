package auth

import (
	"sync"

	"github.com/userdesk/userdesk/internal/store"
)

var tokenStore struct {
	sync.Mutex
	store store.Store
}

// RegisterTokenStore installs the store that authenticators built without explicit storage
// keep their session in. main registers the backend chosen by configuration.
func RegisterTokenStore(s store.Store) {
	tokenStore.Lock()
	defer tokenStore.Unlock()
	tokenStore.store = s
}

// GetTokenStore returns the registered store. Until one is registered, a process-local
// memory store is created and kept.
func GetTokenStore() store.Store {
	tokenStore.Lock()
	defer tokenStore.Unlock()
	if tokenStore.store == nil {
		tokenStore.store = store.NewMemoryStore()
	}
	return tokenStore.store
}
