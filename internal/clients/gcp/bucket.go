package gcp

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/utils"
)

// Bucket wraps GCS for audio artifacts. Keys are namespaced by entity,
// e.g. responses/<session_id>/<question_id>.webm.
type Bucket interface {
	Upload(ctx context.Context, key string, file io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	SignedURL(key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

type bucket struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
}

func NewBucket(ctx context.Context, log *logger.Logger) (Bucket, error) {
	serviceLog := log.With("service", "Bucket")

	name := utils.GetEnv("GCS_BUCKET_NAME", "", log)
	if name == "" {
		return nil, fmt.Errorf("missing GCS_BUCKET_NAME")
	}
	saPath := utils.GetEnv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "", log)

	var stClient *storage.Client
	var err error
	if saPath != "" {
		stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
	} else {
		stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &bucket{
		log:           serviceLog,
		storageClient: stClient,
		bucketName:    name,
	}, nil
}

func (b *bucket) Upload(ctx context.Context, key string, file io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	w := b.storageClient.Bucket(b.bucketName).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (b *bucket) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	o := b.storageClient.Bucket(b.bucketName).Object(key)
	if err := o.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete GCS object %q: %w", key, err)
	}
	return nil
}

func (b *bucket) SignedURL(key string, ttl time.Duration) (string, error) {
	url, err := b.storageClient.Bucket(b.bucketName).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign GCS url for %q: %w", key, err)
	}
	return url, nil
}

func (b *bucket) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.bucketName, key)
}
