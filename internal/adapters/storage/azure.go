package storage

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/jobrunner/byoc/internal/domain"
	"github.com/jobrunner/byoc/internal/ports/output"
)

// AzureLister implements ObjectLister for Azure Blob Storage. The bucket
// argument of ListPrefix names the container.
type AzureLister struct {
	client *azblob.Client
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName      string
	AccountKey       string
	ConnectionString string
}

// NewAzureLister creates a new Azure Blob Storage lister.
func NewAzureLister(cfg AzureConfig) (*AzureLister, error) {
	if cfg.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, err
		}
		return &AzureLister{client: client}, nil
	}

	url := "https://" + cfg.AccountName + ".blob.core.windows.net/"
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, err
	}
	client, err := azblob.NewClientWithSharedKeyCredential(url, cred, nil)
	if err != nil {
		return nil, err
	}

	return &AzureLister{client: client}, nil
}

// ListPrefix returns the blobs and virtual directories directly under prefix.
func (s *AzureLister) ListPrefix(ctx context.Context, bucket, prefix string) (output.Listing, error) {
	var listing output.Listing

	containerClient := s.client.ServiceClient().NewContainerClient(bucket)
	pager := containerClient.NewListBlobsHierarchyPager(delimiter, &container.ListBlobsHierarchyOptions{
		Prefix: &prefix,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return output.Listing{}, &domain.StorageError{Operation: "list", Key: prefix, Err: err}
		}
		if page.Segment == nil {
			continue
		}

		for _, blob := range page.Segment.BlobItems {
			if blob.Name == nil {
				continue
			}
			listing.Objects = append(listing.Objects, blobToStorageObject(blob))
		}

		for _, p := range page.Segment.BlobPrefixes {
			if p.Name != nil {
				listing.Prefixes = append(listing.Prefixes, *p.Name)
			}
		}
	}

	return listing, nil
}

// blobToStorageObject converts an Azure blob to a StorageObject.
func blobToStorageObject(blob *container.BlobItem) output.StorageObject {
	obj := output.StorageObject{Key: *blob.Name}

	if blob.Properties == nil {
		return obj
	}
	if blob.Properties.ContentLength != nil {
		obj.Size = *blob.Properties.ContentLength
	}
	if blob.Properties.LastModified != nil {
		obj.LastModified = *blob.Properties.LastModified
	}
	if blob.Properties.ETag != nil {
		obj.ETag = string(*blob.Properties.ETag)
	}
	return obj
}
