package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

// ObjectStoreConfig locates the bucket holding the session documents.
type ObjectStoreConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Prefix    string
	UseSSL    bool
	PathStyle bool
}

// ObjectStore keeps each key as a <prefix>/<key>.json object in an S3-compatible bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
	region string
	prefix string
}

// NewObjectStore validates cfg and builds the minio client. No request is sent until
// EnsureBucket or the first read or write.
func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	bucket := strings.TrimSpace(cfg.Bucket)
	accessKey := strings.TrimSpace(cfg.AccessKey)
	secretKey := strings.TrimSpace(cfg.SecretKey)
	for _, required := range []struct{ name, value string }{
		{"endpoint", endpoint},
		{"bucket", bucket},
		{"access key", accessKey},
		{"secret key", secretKey},
	} {
		if required.value == "" {
			return nil, fmt.Errorf("object store: %s is required", required.name)
		}
	}

	lookup := minio.BucketLookupAuto
	if cfg.PathStyle {
		lookup = minio.BucketLookupPath
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("object store: new client for %s: %w", endpoint, err)
	}
	return &ObjectStore{
		client: client,
		bucket: bucket,
		region: cfg.Region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// EnsureBucket creates the bucket on first use.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	switch {
	case err != nil:
		return fmt.Errorf("object store: stat bucket %s: %w", s.bucket, err)
	case exists:
		return nil
	}
	if err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("object store: make bucket %s: %w", s.bucket, err)
	}
	log.WithField("store", "object").Infof("bucket %s created", s.bucket)
	return nil
}

// Get reads the object for key. A missing object reports ok=false.
func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	name, err := s.objectKey(key)
	if err != nil {
		return nil, false, err
	}
	object, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err == nil {
		defer func() { _ = object.Close() }()
		var data []byte
		if data, err = io.ReadAll(object); err == nil {
			return data, true, nil
		}
	}
	// GetObject is lazy, so a missing key usually surfaces from the read.
	if isObjectNotFound(err) {
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("object store: get %s: %w", name, err)
}

// Set writes value in one PUT, which replaces the object atomically.
func (s *ObjectStore) Set(ctx context.Context, key string, value []byte) error {
	name, err := s.objectKey(key)
	if err != nil {
		return err
	}
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	if _, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(value), int64(len(value)), opts); err != nil {
		return fmt.Errorf("object store: put %s: %w", name, err)
	}
	return nil
}

// Delete removes the object for key. Deleting a missing key succeeds.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	name, err := s.objectKey(key)
	if err != nil {
		return err
	}
	err = s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{})
	if err != nil && !isObjectNotFound(err) {
		return fmt.Errorf("object store: remove %s: %w", name, err)
	}
	return nil
}

// Close does nothing; the minio client keeps no connection state to release.
func (s *ObjectStore) Close() error { return nil }

func (s *ObjectStore) objectKey(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", fmt.Errorf("object store: %w", err)
	}
	if s.prefix == "" {
		return key + ".json", nil
	}
	return s.prefix + "/" + key + ".json", nil
}

func isObjectNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound ||
		resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.Code == "NoSuchBucket"
}
