package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/output"
)

// MinIOLister implements ObjectLister using the MinIO client.
type MinIOLister struct {
	client *minio.Client
}

// MinIOConfig holds MinIO connection settings.
type MinIOConfig struct {
	Endpoint  string // e.g., "localhost:9000"
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// NewMinIOLister creates a new MinIO lister.
func NewMinIOLister(cfg MinIOConfig) (*MinIOLister, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOLister{client: client}, nil
}

// ListPrefix returns the objects and common prefixes directly under prefix.
// MinIO reports common prefixes as zero-size objects whose key ends in "/".
func (m *MinIOLister) ListPrefix(ctx context.Context, bucket, prefix string) (output.Listing, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var listing output.Listing

	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if obj.Err != nil {
			return output.Listing{}, &domain.StorageError{Operation: "list", Key: prefix, Err: obj.Err}
		}

		if strings.HasSuffix(obj.Key, delimiter) {
			if obj.Key != prefix {
				listing.Prefixes = append(listing.Prefixes, obj.Key)
			}
			continue
		}

		listing.Objects = append(listing.Objects, output.StorageObject{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         strings.Trim(obj.ETag, "\""),
		})
	}

	return listing, nil
}
