package providers

import (
	"context"
	"fmt"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// FileStore hands out short-lived URLs for gate photos and notice
// attachments. Clients upload and download directly against GCS.
type FileStore interface {
	UploadURL(ctx context.Context, key, contentType string, expiresIn time.Duration) (string, error)
	DownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)
	ObjectKey(prefix, fileName string) string
	Delete(ctx context.Context, key string) error
	Close() error
}

// GCSProvider implements FileStore on Google Cloud Storage
type GCSProvider struct {
	client *storage.Client
	bucket string
	logger *logrus.Logger
}

// NewGCSProvider creates a new Google Cloud Storage provider instance
func NewGCSProvider(ctx context.Context, bucket, credentialsFile, credentialsJSON string, logger *logrus.Logger) (*GCSProvider, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if bucket == "" {
		return nil, fmt.Errorf("GCS bucket is required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	} else if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSProvider{
		client: client,
		bucket: bucket,
		logger: logger,
	}, nil
}

// UploadURL generates a presigned PUT URL for direct client uploads
func (p *GCSProvider) UploadURL(ctx context.Context, key, contentType string, expiresIn time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Method:  "PUT",
		Expires: time.Now().Add(expiresIn),
	}
	if contentType != "" {
		opts.ContentType = contentType
	}

	url, err := p.client.Bucket(p.bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate GCS presigned URL: %w", err)
	}
	return url, nil
}

// DownloadURL generates a presigned GET URL
func (p *GCSProvider) DownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expiresIn),
	}

	url, err := p.client.Bucket(p.bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate GCS presigned URL: %w", err)
	}
	return url, nil
}

// ObjectKey builds a collision-free object key under the given prefix
func (p *GCSProvider) ObjectKey(prefix, fileName string) string {
	if prefix == "" {
		prefix = "uploads"
	}
	return path.Join(prefix, fmt.Sprintf("%s_%s", uuid.New().String(), path.Base(fileName)))
}

// Delete removes an object
func (p *GCSProvider) Delete(ctx context.Context, key string) error {
	if err := p.client.Bucket(p.bucket).Object(key).Delete(ctx); err != nil {
		p.logger.WithError(err).WithField("key", key).Error("Failed to delete from GCS")
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// Close closes the GCS client
func (p *GCSProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// NoOpFileStore is used when no bucket is configured. URLs are not
// available but the rest of the API keeps working.
type NoOpFileStore struct{}

func NewNoOpFileStore() *NoOpFileStore {
	return &NoOpFileStore{}
}

func (s *NoOpFileStore) UploadURL(ctx context.Context, key, contentType string, expiresIn time.Duration) (string, error) {
	return "", fmt.Errorf("file storage is not configured")
}

func (s *NoOpFileStore) DownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	return "", fmt.Errorf("file storage is not configured")
}

func (s *NoOpFileStore) ObjectKey(prefix, fileName string) string {
	if prefix == "" {
		prefix = "uploads"
	}
	return path.Join(prefix, fmt.Sprintf("%s_%s", uuid.New().String(), path.Base(fileName)))
}

func (s *NoOpFileStore) Delete(ctx context.Context, key string) error {
	return nil
}

func (s *NoOpFileStore) Close() error {
	return nil
}
