package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSObjectStore keeps photos in a single Cloud Storage bucket.
type GCSObjectStore struct {
	client *storage.Client
	bucket string
}

func NewGCSObjectStore(ctx context.Context, bucket string, credentialsJSON []byte) (*GCSObjectStore, error) {
	var opts []option.ClientOption
	if len(credentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSObjectStore{client: client, bucket: bucket}, nil
}

func (s *GCSObjectStore) Put(ctx context.Context, path, contentType string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return w.Close()
}

func (s *GCSObjectStore) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	return s.client.Bucket(s.bucket).SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
}

func (s *GCSObjectStore) Close() error {
	return s.client.Close()
}
