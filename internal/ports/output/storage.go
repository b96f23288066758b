// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"
	"time"
)

// ObjectLister defines the secondary port for listing an object store.
type ObjectLister interface {
	// ListPrefix returns the objects and sub-prefixes directly under prefix,
	// using "/" as the delimiter. Implementations page through all results.
	ListPrefix(ctx context.Context, bucket, prefix string) (Listing, error)
}

// Listing is one level of a delimiter-based listing.
type Listing struct {
	Objects  []StorageObject // Objects whose key has no "/" after the prefix
	Prefixes []string        // Common prefixes, each ending in "/"
}

// StorageObject represents a file in object storage.
type StorageObject struct {
	Key          string    // Full object key
	Size         int64     // Size in bytes
	LastModified time.Time // Last modification time
	ETag         string    // Content hash
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinIO StorageType = "minio"
	StorageTypeAzure StorageType = "azure"
	StorageTypeLocal StorageType = "local"
)
