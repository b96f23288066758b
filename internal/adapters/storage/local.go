// Package storage provides object storage adapters.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/output"
)

// delimiter separates levels of an object key.
const delimiter = "/"

// LocalLister implements ObjectLister for the local filesystem. A bucket is a
// directory below the base path; keys are slash-separated paths relative to it.
type LocalLister struct {
	basePath string
}

// NewLocalLister creates a new local lister.
func NewLocalLister(basePath string) *LocalLister {
	return &LocalLister{basePath: basePath}
}

// ListPrefix lists one directory level with object store prefix semantics:
// the part of prefix after the last "/" filters entry names.
func (s *LocalLister) ListPrefix(ctx context.Context, bucket, prefix string) (output.Listing, error) {
	if err := ctx.Err(); err != nil {
		return output.Listing{}, err
	}

	dir, namePrefix := splitPrefix(prefix)
	root := s.BucketPath(bucket)

	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(dir)))
	if errors.Is(err, fs.ErrNotExist) {
		// A missing prefix is an empty listing, a missing bucket is not.
		if _, statErr := os.Stat(root); statErr != nil {
			return output.Listing{}, &domain.StorageError{
				Operation: "list",
				Key:       prefix,
				Err:       fmt.Errorf("bucket %s: %w", bucket, statErr),
			}
		}
		return output.Listing{}, nil
	}
	if err != nil {
		return output.Listing{}, &domain.StorageError{Operation: "list", Key: prefix, Err: err}
	}

	var listing output.Listing
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, namePrefix) {
			continue
		}

		if entry.IsDir() {
			listing.Prefixes = append(listing.Prefixes, dir+name+delimiter)
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		listing.Objects = append(listing.Objects, output.StorageObject{
			Key:          dir + name,
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
		})
	}

	return listing, nil
}

// BucketPath returns the directory holding a bucket.
func (s *LocalLister) BucketPath(bucket string) string {
	return filepath.Join(s.basePath, bucket)
}

// splitPrefix splits a prefix into its directory part, ending in "/" or
// empty, and the trailing name filter.
func splitPrefix(prefix string) (string, string) {
	idx := strings.LastIndex(prefix, delimiter)
	return prefix[:idx+1], prefix[idx+1:]
}
