// Package store provides the key-value backends that persist the OAuth token state and the
// pending authorization request. Every backend stores opaque JSON documents by key and
// replaces a document atomically from a reader's point of view.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/userdesk/userdesk/internal/config"
	"github.com/userdesk/userdesk/internal/util"
)

// Store is a key-value backend for small JSON documents.
// Get reports ok=false when the key does not exist.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open creates the backend selected by cfg.Store.Type.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: config is nil")
	}
	storeCfg := cfg.Store

	switch storeCfg.Type {
	case config.StoreTypeMemory:
		log.Debug("using in-memory token store")
		return NewMemoryStore(), nil
	case config.StoreTypeSQLite, config.StoreTypePostgres:
		log.Debugf("using %s token store", storeCfg.Type)
		return NewSQLStore(ctx, SQLStoreConfig{
			Dialect: storeCfg.Type,
			DSN:     storeCfg.SQL.DSN,
			Schema:  storeCfg.SQL.Schema,
			Table:   storeCfg.SQL.Table,
		})
	case config.StoreTypeObject:
		log.Debug("using object storage token store")
		objectStore, err := NewObjectStore(ObjectStoreConfig{
			Endpoint:  storeCfg.Object.Endpoint,
			Bucket:    storeCfg.Object.Bucket,
			AccessKey: storeCfg.Object.AccessKey,
			SecretKey: storeCfg.Object.SecretKey,
			Region:    storeCfg.Object.Region,
			Prefix:    storeCfg.Object.Prefix,
			UseSSL:    storeCfg.Object.UseSSL,
			PathStyle: storeCfg.Object.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		if err = objectStore.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return objectStore, nil
	case config.StoreTypeFile, "":
		dir := storeCfg.Dir
		if strings.TrimSpace(dir) == "" {
			dir = cfg.AuthDir
		}
		if writable := util.WritablePath(); writable != "" && !filepath.IsAbs(dir) && !strings.HasPrefix(dir, "~") {
			dir = filepath.Join(writable, dir)
		}
		resolved, err := util.ResolveAuthDir(dir)
		if err != nil {
			return nil, err
		}
		log.Debugf("using file token store at %s", resolved)
		return NewFileStore(resolved)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", storeCfg.Type)
	}
}

// validateKey rejects keys that could escape a directory or object prefix.
func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key is empty")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}
